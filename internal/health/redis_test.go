package health

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisCheckerConstruction(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	checker := NewRedisChecker(client)
	if checker == nil {
		t.Fatal("expected checker to be non-nil")
	}
	if checker.client != client {
		t.Error("expected checker client to match provided client")
	}
}

func TestRedisCheckerCancelledContext(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:1", // nothing listens here
	})

	checker := NewRedisChecker(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := checker.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() error = nil, want error with cancelled context")
	}
}
