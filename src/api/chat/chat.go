package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/bus"
	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/types"
)

// Message is the wire payload pushed to the job room on every send.
type Message struct {
	ID              uint64    `json:"id"`
	JobID           uint64    `json:"jobId"`
	FreelancerID    uint64    `json:"freelancerId"`
	SenderAccountID uint64    `json:"senderAccountId"`
	Message         string    `json:"message"`
	FileURL         string    `json:"fileUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Deletion is pushed when a sender removes one of their messages.
type Deletion struct {
	Deleted uint64 `json:"deleted"`
	JobID   uint64 `json:"jobId"`
}

type Bus interface {
	Publish(topic string, payload []byte)
}

// Service is the per-engagement chat channel: an append-only message log
// scoped to an accepted (job, freelancer) pair, broadcast through the bus
// in persistence-commit order.
type Service struct {
	db     *gorm.DB
	bus    Bus
	policy *bluemonday.Policy
}

func NewService(db *gorm.DB, b Bus) *Service {
	return &Service{db: db, bus: b, policy: bluemonday.UGCPolicy()}
}

// Send appends a message to the engagement's log. The proposal for the pair
// must be accepted and the sender must be the job's client or the engaged
// freelancer.
func (s *Service) Send(ctx context.Context, jobID, freelancerID, senderID uint64, body, fileURL string) (types.ChatMessage, error) {
	db := s.db.WithContext(ctx)

	var prop types.Proposal
	if err := db.First(&prop, "job_id = ? AND freelancer_id = ?", jobID, freelancerID).Error; err != nil {
		return types.ChatMessage{}, storeErr(err)
	}
	if prop.Status != types.ProposalAccepted {
		return types.ChatMessage{}, lifecycle.ErrProposalNotAccepted
	}
	var job types.Job
	if err := db.First(&job, "id = ?", jobID).Error; err != nil {
		return types.ChatMessage{}, storeErr(err)
	}
	if senderID != job.ClientID && senderID != freelancerID {
		return types.ChatMessage{}, lifecycle.ErrUnauthorized
	}

	body = strings.TrimSpace(s.policy.Sanitize(body))
	if body == "" {
		return types.ChatMessage{}, lifecycle.ErrEmptyMessage
	}

	msg := types.ChatMessage{
		JobID:        jobID,
		FreelancerID: freelancerID,
		SenderID:     senderID,
		Body:         body,
		FileURL:      fileURL,
	}
	if err := db.Create(&msg).Error; err != nil {
		return types.ChatMessage{}, storeErr(err)
	}

	s.publish(jobID, Message{
		ID:              msg.ID,
		JobID:           msg.JobID,
		FreelancerID:    msg.FreelancerID,
		SenderAccountID: msg.SenderID,
		Message:         msg.Body,
		FileURL:         msg.FileURL,
		CreatedAt:       msg.CreatedAt,
	})
	return msg, nil
}

// Delete removes a message. Sender only.
func (s *Service) Delete(ctx context.Context, messageID, requesterID uint64) error {
	db := s.db.WithContext(ctx)

	var msg types.ChatMessage
	if err := db.First(&msg, "id = ?", messageID).Error; err != nil {
		return storeErr(err)
	}
	if msg.SenderID != requesterID {
		return lifecycle.ErrUnauthorized
	}
	if err := db.Delete(&types.ChatMessage{}, "id = ?", messageID).Error; err != nil {
		return storeErr(err)
	}
	s.publish(msg.JobID, Deletion{Deleted: msg.ID, JobID: msg.JobID})
	return nil
}

// List returns the engagement's messages in createdAt order. The requester
// must be a participant.
func (s *Service) List(ctx context.Context, jobID, freelancerID, requesterID uint64) ([]types.ChatMessage, error) {
	db := s.db.WithContext(ctx)

	var job types.Job
	if err := db.First(&job, "id = ?", jobID).Error; err != nil {
		return nil, storeErr(err)
	}
	if requesterID != job.ClientID && requesterID != freelancerID {
		return nil, lifecycle.ErrUnauthorized
	}
	var msgs []types.ChatMessage
	if err := db.Where("job_id = ? AND freelancer_id = ?", jobID, freelancerID).
		Order("created_at asc, id asc").
		Find(&msgs).Error; err != nil {
		return nil, storeErr(err)
	}
	return msgs, nil
}

func (s *Service) publish(jobID uint64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("chat: marshal event: %v", err)
		return
	}
	s.bus.Publish(bus.JobChatTopic(jobID), payload)
}

func storeErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lifecycle.ErrNotFound
	}
	log.Printf("chat: persistence failure: %v", err)
	return lifecycle.ErrPersistence
}
