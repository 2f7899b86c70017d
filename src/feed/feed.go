package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workmesh/workmesh/src/api/data"
)

// feed tails the platform event stream and mirrors every event to a
// webhook as JSON. Delivery is best-effort: a failed POST is logged and
// skipped, never retried.

type webhookEvent struct {
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"`
	Time  time.Time       `json:"time"`
}

type feed struct {
	rdb        *redis.Client
	client     *http.Client
	webhookURL string
}

func (f *feed) run(ctx context.Context) {
	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		streams, err := data.ReadEvents(ctx, f.rdb, lastID)
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				log.Printf("feed: read stream: %v", err)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				topic, _ := msg.Values["topic"].(string)
				payload, _ := msg.Values["payload"].(string)
				if topic == "" || payload == "" {
					continue
				}
				f.forward(ctx, topic, []byte(payload))
			}
		}
	}
}

func (f *feed) forward(ctx context.Context, topic string, payload []byte) {
	body, err := json.Marshal(webhookEvent{
		Topic: topic,
		Event: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		log.Printf("feed: marshal event: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("feed: build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		log.Printf("feed: webhook post: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("feed: webhook returned %d for topic %s", resp.StatusCode, topic)
	}
}

func main() {
	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		log.Fatal("missing env WEBHOOK_URL")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://127.0.0.1:6379/0"
	}

	rdb := data.MustRedis(redisURL)

	ctx, cancel := context.WithCancel(context.Background())
	f := &feed{
		rdb:        rdb,
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
	go f.run(ctx)
	log.Printf("WorkMesh feed forwarding %s to %s", data.StreamEvents, webhookURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
}
