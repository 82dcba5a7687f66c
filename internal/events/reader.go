package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is an event read back from the stream with its stream id.
type Message struct {
	ID    string
	Event Event
}

// Reader tails the events stream.
type Reader struct {
	client *redis.Client
	stream string
}

func NewReader(client *redis.Client, stream string) *Reader {
	return &Reader{client: client, stream: stream}
}

// Read blocks up to block for messages after lastID ("$" for new messages
// only). It returns no messages and no error when the wait times out.
func (r *Reader) Read(ctx context.Context, lastID string, block time.Duration, count int64) ([]Message, error) {
	if lastID == "" {
		lastID = "$"
	}
	res, err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{r.stream, lastID},
		Block:   block,
		Count:   count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading events: %w", err)
	}

	var out []Message
	for _, stream := range res {
		for _, msg := range stream.Messages {
			var evt Event
			if raw, ok := msg.Values["data"].(string); ok {
				if err := json.Unmarshal([]byte(raw), &evt); err != nil {
					return nil, fmt.Errorf("decoding event %s: %w", msg.ID, err)
				}
			}
			out = append(out, Message{ID: msg.ID, Event: evt})
		}
	}
	return out, nil
}
