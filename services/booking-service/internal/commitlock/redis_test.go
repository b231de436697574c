package commitlock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLockFailsWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	l := NewRedisLocker(rdb, quiet, Config{Wait: 300 * time.Millisecond})
	unlock, err := l.Lock(context.Background(), "booking:provider:p1")
	if err == nil {
		unlock()
		t.Fatalf("expected error without redis")
	}
	if ReadyCheck(rdb)(context.Background()) == nil {
		t.Fatalf("expected ready check to fail")
	}
}

func TestLockIsExclusive(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := NewRedisLocker(rdb, quiet, Config{Wait: 100 * time.Millisecond, Prefix: "test-" + uuid.NewString()})
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "p1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := l.Lock(ctx, "p1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}
	other, err := l.Lock(ctx, "p2")
	if err != nil {
		t.Fatalf("other keys must be independent: %v", err)
	}
	other()

	unlock()
	again, err := l.Lock(ctx, "p1")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	again()
}
