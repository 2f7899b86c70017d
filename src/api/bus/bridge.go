package bus

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/workmesh/workmesh/src/api/data"
)

// Bridge mirrors bus publishes through a Redis stream so that sessions
// connected to other API instances still receive them. Each instance tags
// its entries with an origin id and skips its own on the way back in.
// Push stays best-effort: a failed XAdd or a missed entry only costs the
// optimistic push, never the durable row.
type Bridge struct {
	rdb    *redis.Client
	reg    *Registry
	origin string
}

func NewBridge(rdb *redis.Client, reg *Registry) *Bridge {
	b := &Bridge{rdb: rdb, reg: reg, origin: uuid.NewString()}
	reg.SetMirror(b)
	return b
}

func (b *Bridge) Forward(topic string, payload []byte) {
	err := data.PublishEvent(context.Background(), b.rdb, map[string]interface{}{
		"origin":  b.origin,
		"topic":   topic,
		"payload": string(payload),
	})
	if err != nil {
		log.Printf("bus: stream publish failed: %v", err)
	}
}

// Run tails the event stream and re-delivers entries from other instances
// to local subscribers. Blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	lastID := "$"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		streams, err := data.ReadEvents(ctx, b.rdb, lastID)
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				log.Printf("bus: stream read failed: %v", err)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				origin, _ := msg.Values["origin"].(string)
				if origin == b.origin {
					continue
				}
				topic, _ := msg.Values["topic"].(string)
				payload, _ := msg.Values["payload"].(string)
				if topic == "" || payload == "" {
					continue
				}
				b.reg.deliver(topic, []byte(payload))
			}
		}
	}
}
