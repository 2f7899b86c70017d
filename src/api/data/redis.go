package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamEvents is the cross-process mirror of every bus publish.
const StreamEvents = "workmesh.events"

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

func PublishEvent(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		MaxLen: 10000,
		Approx: true,
		Values: payload,
	}).Result()
	return err
}

func ReadEvents(ctx context.Context, rdb *redis.Client, lastID string) ([]redis.XStream, error) {
	return rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{StreamEvents, lastID},
		Count:   64,
		Block:   5 * time.Second,
	}).Result()
}
