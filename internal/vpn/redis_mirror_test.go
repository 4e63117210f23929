package vpn

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisMirror(t *testing.T) {
	redisURL := os.Getenv("TWBOT_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TWBOT_TEST_REDIS_URL not set")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("twbot:test:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	mirror := NewRedisMirror(client, key)
	if _, found, err := mirror.Get(ctx, "9.9.9.9"); err != nil || found {
		t.Fatalf("Get on empty hash = (found %v, err %v), want miss", found, err)
	}

	if err := mirror.Put(ctx, "9.9.9.9", true); err != nil {
		t.Fatalf("Put returned %v", err)
	}
	if err := mirror.Put(ctx, "1.1.1.1", false); err != nil {
		t.Fatalf("Put returned %v", err)
	}

	for ip, want := range map[string]bool{"9.9.9.9": true, "1.1.1.1": false} {
		got, found, err := mirror.Get(ctx, ip)
		if err != nil || !found || got != want {
			t.Fatalf("Get(%s) = (%v, %v, %v), want (%v, true, nil)", ip, got, found, err, want)
		}
	}

	cache := NewCache(nil)
	cache.SetMirror(mirror)
	if isVPN, found := cache.Lookup(ctx, "9.9.9.9"); !found || !isVPN {
		t.Fatalf("Lookup through mirror = (%v, %v), want (true, true)", isVPN, found)
	}
}
