package redisad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "hotelbot/internal/adapters/redis"
	"hotelbot/internal/domain"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	var got []domain.Location
	ok, err := c.Get(ctx, "loc:moscow", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := []domain.Location{{DestinationID: 1153093, Caption: "Moscow, Russia", NameLower: "moscow"}}
	if err := c.Set(ctx, "loc:moscow", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err = c.Get(ctx, "loc:moscow", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].DestinationID != 1153093 {
		t.Fatalf("unexpected value: %+v", got)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := c.Get(ctx, "loc:moscow", &got); ok {
		t.Fatalf("expected expiry")
	}

	_ = c.Set(ctx, "k", 1, 60)
	if !mr.Exists("hotelbot:k") {
		t.Fatalf("expected namespaced key")
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("hotelbot:k") {
		t.Fatalf("key not deleted")
	}
}

func TestLocker_SerializesPerKey(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	l := redisad.NewLocker(c.Client())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "lock:chat:1", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(short, "lock:chat:1", time.Minute); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	// other chats are independent
	other, err := l.Lock(ctx, "lock:chat:2", time.Minute)
	if err != nil {
		t.Fatalf("lock other: %v", err)
	}
	_ = other(ctx)

	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	again, err := l.Lock(ctx, "lock:chat:1", time.Minute)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	_ = again(ctx)
}

func TestLocker_UnlockKeepsForeignOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	l := redisad.NewLocker(c.Client())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "lock:chat:9", time.Second)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// lease expires and somebody else takes the key
	mr.FastForward(2 * time.Second)
	if err := mr.Set("lock:chat:9", "someone-else"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if v, _ := mr.Get("lock:chat:9"); v != "someone-else" {
		t.Fatalf("foreign lock was released: %q", v)
	}
}
