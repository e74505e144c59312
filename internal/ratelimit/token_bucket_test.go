package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBucket(t *testing.T, capacity int, window time.Duration) (*RedisTokenBucket, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bucket, err := NewRedisTokenBucket(client, capacity, window, "")
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	bucket.now = func() time.Time { return now }
	return bucket, &now
}

func TestTokenBucketDeniesAfterCapacity(t *testing.T) {
	bucket, _ := newBucket(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := bucket.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow #%d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}

	d, err := bucket.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third request to be denied")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %s", d.RetryAfter)
	}
}

func TestTokenBucketRefills(t *testing.T) {
	bucket, now := newBucket(t, 1, time.Second)
	ctx := context.Background()

	if d, _ := bucket.Allow(ctx, "client"); !d.Allowed {
		t.Fatal("expected first request to pass")
	}
	if d, _ := bucket.Allow(ctx, "client"); d.Allowed {
		t.Fatal("expected bucket to be empty")
	}

	*now = now.Add(2 * time.Second)
	if d, _ := bucket.Allow(ctx, "client"); !d.Allowed {
		t.Fatal("expected bucket to refill")
	}
}

func TestTokenBucketSubjectsAreIndependent(t *testing.T) {
	bucket, _ := newBucket(t, 1, time.Minute)
	ctx := context.Background()

	if d, _ := bucket.Allow(ctx, "a"); !d.Allowed {
		t.Fatal("expected a to pass")
	}
	if d, _ := bucket.Allow(ctx, "b"); !d.Allowed {
		t.Fatal("expected b to pass independently")
	}
}

func TestNewRedisTokenBucketValidates(t *testing.T) {
	if _, err := NewRedisTokenBucket(nil, 1, time.Second, ""); err == nil {
		t.Fatal("expected error without client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewRedisTokenBucket(client, 0, time.Second, ""); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewRedisTokenBucket(client, 1, 0, ""); err == nil {
		t.Fatal("expected error for zero window")
	}
}
