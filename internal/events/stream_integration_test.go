//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func TestRedisStreamPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	defer container.Terminate(context.Background())
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	opts, _ := redis.ParseURL("redis://" + endpoint)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	s := NewRedisStream(rdb, "test:events", zap.NewNop())
	go s.Run(ctx)

	s.Handle(Event{ID: "1", Type: ConceptNew, Term: "bird"})
	s.Handle(Event{ID: "2", Type: ConceptFire, Term: "bird"})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) == 2 {
			if got[0].ID != "2" || got[1].Type != ConceptNew {
				t.Errorf("Recent = %+v", got)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("events never reached the stream")
}
