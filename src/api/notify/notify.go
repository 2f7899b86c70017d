package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/bus"
	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/types"
)

const pageSize = 20

// Event is the wire-stable push payload. It mirrors the persisted row; a
// subscriber that missed the push finds the same data via List.
type Event struct {
	ID        uint64    `json:"id,string"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
	URL       string    `json:"url"`
}

type Bus interface {
	Publish(topic string, payload []byte)
}

// Dispatcher turns lifecycle notification effects into durable rows and
// best-effort pushes. Rows are written inside the coordinator's transaction;
// the push happens after commit and is never retried.
type Dispatcher struct {
	db  *gorm.DB
	bus Bus
}

func NewDispatcher(db *gorm.DB, b Bus) *Dispatcher {
	return &Dispatcher{db: db, bus: b}
}

func (d *Dispatcher) PersistTx(tx *gorm.DB, effects []lifecycle.NotifyAccount) ([]types.Notification, error) {
	rows := make([]types.Notification, 0, len(effects))
	for _, e := range effects {
		n := types.Notification{
			AccountID: e.AccountID,
			Type:      e.Type,
			Message:   e.Message,
			URL:       e.URL,
		}
		if err := tx.Create(&n).Error; err != nil {
			return nil, err
		}
		rows = append(rows, n)
	}
	return rows, nil
}

func (d *Dispatcher) Publish(rows []types.Notification) {
	for _, n := range rows {
		payload, err := json.Marshal(Event{
			ID:        n.ID,
			Type:      n.Type,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
			URL:       n.URL,
		})
		if err != nil {
			log.Printf("notify: marshal notification %d: %v", n.ID, err)
			continue
		}
		d.bus.Publish(bus.NotificationTopic(n.AccountID), payload)
	}
}

type Page struct {
	Notifications []types.Notification `json:"notifications"`
	Page          int                  `json:"page"`
	TotalUnread   int64                `json:"totalUnread"`
}

// List returns one page of the account's notifications, newest first, with
// the account's total unread count.
func (d *Dispatcher) List(ctx context.Context, accountID uint64, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	db := d.db.WithContext(ctx)

	var rows []types.Notification
	if err := db.Where("account_id = ?", accountID).
		Order("created_at desc, id desc").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error; err != nil {
		return Page{}, err
	}
	var unread int64
	if err := db.Model(&types.Notification{}).
		Where("account_id = ? AND is_read = ?", accountID, false).
		Count(&unread).Error; err != nil {
		return Page{}, err
	}
	return Page{Notifications: rows, Page: page, TotalUnread: unread}, nil
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, accountID uint64) error {
	return d.db.WithContext(ctx).Model(&types.Notification{}).
		Where("account_id = ? AND is_read = ?", accountID, false).
		Update("is_read", true).Error
}
