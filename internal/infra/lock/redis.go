package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	radix "github.com/mediocregopher/radix/v3"
)

var ErrLockTimeout = errors.New("lock timeout")

// 自分が取ったロックだけ消す
var unlockScript = radix.NewEvalScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 複数インスタンス間で同じ注文の照合を直列にする
type RedisLocker struct {
	client radix.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

func NewRedisLocker(client radix.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "thekua:lock:",
	}
}

// 接続プール作成
func NewRedisPool(addr string, size int) (radix.Client, error) {
	pool, err := radix.NewPool("tcp", addr, size)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return pool, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()
	ttlMs := int64(l.ttl / time.Millisecond)

	//ctxが切れるかTTLぶん待ったら諦める
	deadline := time.Now().Add(l.ttl)
	for {
		var reply string
		if err := l.client.Do(radix.FlatCmd(&reply, "SET", k, token, "NX", "PX", ttlMs)); err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if reply == "OK" {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() {
		_ = l.client.Do(unlockScript.Cmd(nil, k, token))
	}, nil
}
