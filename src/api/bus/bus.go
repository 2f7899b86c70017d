package bus

import (
	"fmt"
	"sync"
)

// Topic names. Notifications are per account, chat rooms are per job.
func NotificationTopic(accountID uint64) string {
	return fmt.Sprintf("notifications-%d", accountID)
}

func JobChatTopic(jobID uint64) string {
	return fmt.Sprintf("job-chat-%d", jobID)
}

// Session is a live subscriber connection. Send must not block the
// publisher; implementations buffer or drop.
type Session interface {
	ID() string
	Send(topic string, payload []byte)
}

// Mirror forwards every local publish to other process instances.
type Mirror interface {
	Forward(topic string, payload []byte)
}

// Registry is the process-wide presence registry: topic name to the set of
// currently connected sessions. Delivery is at-most-once per connected
// session, no queueing, no retry; the durable row is the source of truth
// for anything that matters.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[string]Session
	mirror Mirror
}

func New() *Registry {
	return &Registry{topics: make(map[string]map[string]Session)}
}

// SetMirror attaches a cross-instance mirror. Call before serving traffic.
func (r *Registry) SetMirror(m Mirror) { r.mirror = m }

func (r *Registry) Subscribe(topic string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.topics[topic]
	if set == nil {
		set = make(map[string]Session)
		r.topics[topic] = set
	}
	set[s.ID()] = s
}

func (r *Registry) Unsubscribe(topic string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.topics[topic]
	delete(set, s.ID())
	if len(set) == 0 {
		delete(r.topics, topic)
	}
}

// Drop removes the session from every topic it joined. Called on disconnect
// before the connection is torn down, so no later publish can reach it.
func (r *Registry) Drop(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, set := range r.topics {
		delete(set, s.ID())
		if len(set) == 0 {
			delete(r.topics, topic)
		}
	}
}

// Publish delivers to every currently subscribed session and mirrors the
// event for other instances.
func (r *Registry) Publish(topic string, payload []byte) {
	r.deliver(topic, payload)
	if r.mirror != nil {
		r.mirror.Forward(topic, payload)
	}
}

// deliver fans out locally only. The snapshot is taken under the read lock
// so a concurrent Drop cannot race a send to a dead session handle.
func (r *Registry) deliver(topic string, payload []byte) {
	r.mu.RLock()
	set := r.topics[topic]
	sessions := make([]Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		s.Send(topic, payload)
	}
}
