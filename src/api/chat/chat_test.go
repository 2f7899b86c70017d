package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/workmesh/workmesh/src/api/bus"
	"github.com/workmesh/workmesh/src/api/chat"
	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/types"
)

type fakeBus struct {
	mu        sync.Mutex
	topics    []string
	payloads  [][]byte
}

func (f *fakeBus) Publish(topic string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
}

const (
	clientID     = uint64(1)
	freelancerID = uint64(2)
	strangerID   = uint64(3)
	jobID        = uint64(1)
)

func newChatEnv(t *testing.T, proposalStatus string) (*chat.Service, *fakeBus, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Account{}, &types.Job{}, &types.Proposal{}, &types.ChatMessage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	budget := decimal.NewFromInt(500)
	seed := []interface{}{
		&types.Account{ID: clientID, Email: "c@test", PasswordHash: "x", Name: "C", Role: types.RoleClient},
		&types.Account{ID: freelancerID, Email: "f@test", PasswordHash: "x", Name: "F", Role: types.RoleFreelancer},
		&types.Job{ID: jobID, ClientID: clientID, Title: "Build site", Budget: budget, Status: types.JobInProgress},
		&types.Proposal{JobID: jobID, FreelancerID: freelancerID, Status: proposalStatus},
	}
	for _, r := range seed {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	fb := &fakeBus{}
	return chat.NewService(db, fb), fb, db
}

func TestSendRequiresAcceptedEngagement(t *testing.T) {
	svc, fb, _ := newChatEnv(t, types.ProposalPending)
	_, err := svc.Send(context.Background(), jobID, freelancerID, clientID, "hello", "")
	if !errors.Is(err, lifecycle.ErrProposalNotAccepted) {
		t.Fatalf("expected ErrProposalNotAccepted, got %v", err)
	}
	if len(fb.topics) != 0 {
		t.Fatalf("rejected send must not publish")
	}
}

func TestSendPublishesToJobRoom(t *testing.T) {
	svc, fb, _ := newChatEnv(t, types.ProposalAccepted)

	msg, err := svc.Send(context.Background(), jobID, freelancerID, freelancerID, "work is done", "https://files/report.pdf")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fb.topics) != 1 || fb.topics[0] != bus.JobChatTopic(jobID) {
		t.Fatalf("unexpected topics %v", fb.topics)
	}

	var event struct {
		ID              uint64 `json:"id"`
		JobID           uint64 `json:"jobId"`
		FreelancerID    uint64 `json:"freelancerId"`
		SenderAccountID uint64 `json:"senderAccountId"`
		Message         string `json:"message"`
		FileURL         string `json:"fileUrl"`
	}
	if err := json.Unmarshal(fb.payloads[0], &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.ID != msg.ID || event.JobID != jobID || event.SenderAccountID != freelancerID ||
		event.Message != "work is done" || event.FileURL != "https://files/report.pdf" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestSendRejectsOutsiders(t *testing.T) {
	svc, _, db := newChatEnv(t, types.ProposalAccepted)
	if err := db.Create(&types.Account{ID: strangerID, Email: "s@test", PasswordHash: "x", Name: "S", Role: types.RoleFreelancer}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := svc.Send(context.Background(), jobID, freelancerID, strangerID, "let me in", "")
	if !errors.Is(err, lifecycle.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSendSanitizesBody(t *testing.T) {
	svc, _, _ := newChatEnv(t, types.ProposalAccepted)

	msg, err := svc.Send(context.Background(), jobID, freelancerID, clientID, `hi<script>alert(1)</script>`, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if strings.Contains(msg.Body, "script") {
		t.Fatalf("script survived sanitizing: %q", msg.Body)
	}

	_, err = svc.Send(context.Background(), jobID, freelancerID, clientID, `<script>alert(1)</script>`, "")
	if !errors.Is(err, lifecycle.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage for all-markup body, got %v", err)
	}
}

func TestDeleteIsSenderOnly(t *testing.T) {
	svc, fb, db := newChatEnv(t, types.ProposalAccepted)
	msg, err := svc.Send(context.Background(), jobID, freelancerID, freelancerID, "first", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.Delete(context.Background(), msg.ID, clientID); !errors.Is(err, lifecycle.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Delete(context.Background(), msg.ID, freelancerID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), msg.ID, freelancerID); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var remaining int64
	db.Model(&types.ChatMessage{}).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("message row still present")
	}

	// send + deletion events
	if len(fb.topics) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(fb.topics))
	}
	var deletion struct {
		Deleted uint64 `json:"deleted"`
		JobID   uint64 `json:"jobId"`
	}
	if err := json.Unmarshal(fb.payloads[1], &deletion); err != nil {
		t.Fatalf("decode deletion: %v", err)
	}
	if deletion.Deleted != msg.ID || deletion.JobID != jobID {
		t.Fatalf("unexpected deletion event %+v", deletion)
	}
}

func TestListOrdersByCreation(t *testing.T) {
	svc, _, _ := newChatEnv(t, types.ProposalAccepted)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		if _, err := svc.Send(ctx, jobID, freelancerID, clientID, body, ""); err != nil {
			t.Fatalf("send %q: %v", body, err)
		}
	}

	msgs, err := svc.List(ctx, jobID, freelancerID, freelancerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Body != want {
			t.Fatalf("message %d = %q, want %q", i, msgs[i].Body, want)
		}
	}

	if _, err := svc.List(ctx, jobID, freelancerID, strangerID); !errors.Is(err, lifecycle.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for outsider list, got %v", err)
	}
}
