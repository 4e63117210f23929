package vpn

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const DefaultMirrorKey = "twbot:vpn:verdicts"

// RedisMirror keeps verdicts in one Redis hash shared by every bot instance.
type RedisMirror struct {
	client *redis.Client
	key    string
}

func NewRedisMirror(client *redis.Client, key string) *RedisMirror {
	if key == "" {
		key = DefaultMirrorKey
	}
	return &RedisMirror{client: client, key: key}
}

func (m *RedisMirror) Get(ctx context.Context, ip string) (bool, bool, error) {
	val, err := m.client.HGet(ctx, m.key, ip).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (m *RedisMirror) Put(ctx context.Context, ip string, isVPN bool) error {
	flag := "0"
	if isVPN {
		flag = "1"
	}
	return m.client.HSet(ctx, m.key, ip, flag).Err()
}
