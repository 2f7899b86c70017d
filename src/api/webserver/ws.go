package webserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/bus"
	"github.com/workmesh/workmesh/src/api/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsFrame struct {
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"`
}

// wsSession adapts one websocket connection to a bus session. Send never
// blocks the publisher: a slow consumer loses frames instead of stalling
// the bus (delivery is at-most-once, the durable rows are the truth).
type wsSession struct {
	id   string
	send chan wsFrame
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Send(topic string, payload []byte) {
	select {
	case s.send <- wsFrame{Topic: topic, Event: payload}:
	default:
	}
}

type WS struct {
	db        *gorm.DB
	reg       *bus.Registry
	jwtSecret []byte
}

func NewWS(db *gorm.DB, reg *bus.Registry, secret []byte) WS {
	return WS{db: db, reg: reg, jwtSecret: secret}
}

// Serve upgrades the connection and registers the session for the account's
// notification topic plus any job chat rooms the account participates in.
// A session that fails authentication is never admitted to any topic.
func (w WS) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h := c.GetHeader("Authorization")
		token = strings.TrimPrefix(h, "Bearer ")
	}
	acctID, _, _, err := parseJWT(token, w.jwtSecret)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := &wsSession{id: uuid.NewString(), send: make(chan wsFrame, 32)}
	w.reg.Subscribe(bus.NotificationTopic(acctID), sess)
	for _, part := range strings.Split(c.Query("jobs"), ",") {
		if part == "" {
			continue
		}
		jobID, err := strconv.ParseUint(part, 10, 64)
		if err != nil || !w.canJoinRoom(jobID, acctID) {
			continue
		}
		w.reg.Subscribe(bus.JobChatTopic(jobID), sess)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case frame := <-sess.send:
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// inbound frames are ignored; the read loop only detects disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// drop from every topic before tearing the connection down so no
	// further publish is attempted against this session
	w.reg.Drop(sess)
	close(done)
	if err := conn.Close(); err != nil {
		log.Printf("ws: close session %s: %v", sess.id, err)
	}
}

// canJoinRoom admits the job's client and the freelancer of an accepted
// proposal to the job chat room.
func (w WS) canJoinRoom(jobID, acctID uint64) bool {
	var job types.Job
	if err := w.db.First(&job, "id = ?", jobID).Error; err != nil {
		return false
	}
	if job.ClientID == acctID {
		return true
	}
	var count int64
	w.db.Model(&types.Proposal{}).
		Where("job_id = ? AND freelancer_id = ? AND status = ?", jobID, acctID, types.ProposalAccepted).
		Count(&count)
	return count > 0
}
