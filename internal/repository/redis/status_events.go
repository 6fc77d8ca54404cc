package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

var _ repository.StatusEvents = (*redisStatusEvents)(nil)

const statusChannelPrefix = "algocrack:status:"

type redisStatusEvents struct {
	client goredis.UniversalClient
}

// NewRedisStatusEvents creates a pub/sub fan-out of submission status changes.
// Delivery is best effort; subscribers are expected to fall back to polling.
func NewRedisStatusEvents(client goredis.UniversalClient) repository.StatusEvents {
	return &redisStatusEvents{client: client}
}

func (r *redisStatusEvents) Publish(ctx context.Context, ev domain.StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal status event: %w", err)
	}
	if err := r.client.Publish(ctx, statusChannelPrefix+ev.SubmissionID.String(), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish status event: %w", err)
	}
	return nil
}

func (r *redisStatusEvents) Subscribe(ctx context.Context, id uuid.UUID) (<-chan domain.StatusEvent, func(), error) {
	ps := r.client.Subscribe(ctx, statusChannelPrefix+id.String())
	// Wait for the subscription to be confirmed so no event published afterwards is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis: subscribe status events: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.StatusEvent, 8)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
