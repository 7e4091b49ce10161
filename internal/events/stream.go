package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "nuka:mind:events"

// RedisStream mirrors events into a capped Redis stream. Handle never
// blocks: events are queued and written by Run, and dropped when the queue
// is full.
type RedisStream struct {
	rdb     *redis.Client
	stream  string
	maxLen  int64
	queue   chan Event
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewRedisStream creates a sink. Call Run to start writing.
func NewRedisStream(rdb *redis.Client, stream string, logger *zap.Logger) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{
		rdb:    rdb,
		stream: stream,
		maxLen: 10000,
		queue:  make(chan Event, 256),
		logger: logger,
	}
}

// Handle is a Handler.
func (s *RedisStream) Handle(e Event) {
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue.
func (s *RedisStream) Dropped() int64 { return s.dropped.Load() }

// Run writes queued events until ctx is done.
func (s *RedisStream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			if err := s.publish(ctx, e); err != nil {
				s.logger.Warn("publish event", zap.Error(err))
			}
		}
	}
}

func (s *RedisStream) publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": string(e.Type),
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.stream, err)
	}
	return nil
}

// Recent returns up to n of the newest events, newest first.
func (s *RedisStream) Recent(ctx context.Context, n int64) ([]Event, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.stream, err)
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var e Event
		if json.Unmarshal([]byte(data), &e) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}
