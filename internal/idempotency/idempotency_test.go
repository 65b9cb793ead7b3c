package idempotency

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	key := "create-order:user_1:" + uuid.NewString()

	prev, err := st.Begin(ctx, key)
	if err != nil || prev != nil {
		t.Fatalf("first Begin = %q, %v; want claim", prev, err)
	}
	if _, err := st.Begin(ctx, key); !errors.Is(err, ErrInProgress) {
		t.Fatalf("Begin while in flight = %v, want ErrInProgress", err)
	}
	if err := st.Complete(ctx, key, []byte(`{"status":200}`)); err != nil {
		t.Fatal(err)
	}
	prev, err = st.Begin(ctx, key)
	if err != nil || string(prev) != `{"status":200}` {
		t.Fatalf("Begin after Complete = %q, %v", prev, err)
	}

	other := key + ":released"
	if _, err := st.Begin(ctx, other); err != nil {
		t.Fatal(err)
	}
	if err := st.Release(ctx, other); err != nil {
		t.Fatal(err)
	}
	if prev, err := st.Begin(ctx, other); err != nil || prev != nil {
		t.Fatalf("Begin after Release = %q, %v; want fresh claim", prev, err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory(time.Hour))
}

func TestMemoryExpiry(t *testing.T) {
	st := NewMemory(time.Hour)
	clock := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }
	ctx := context.Background()

	if _, err := st.Begin(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	// an abandoned claim frees up after claimTTL
	clock = clock.Add(claimTTL + time.Second)
	if prev, err := st.Begin(ctx, "k"); err != nil || prev != nil {
		t.Fatalf("Begin after claim expiry = %q, %v", prev, err)
	}
	_ = st.Complete(ctx, "k", []byte("resp"))
	clock = clock.Add(2 * time.Hour)
	if prev, err := st.Begin(ctx, "k"); err != nil || prev != nil {
		t.Fatalf("Begin after ttl = %q, %v", prev, err)
	}
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	exerciseStore(t, NewRedis(rdb, time.Minute))
}
