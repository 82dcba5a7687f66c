package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger records idempotency keys of actions that were applied.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string) error
}

// MemoryLedger keeps keys for the lifetime of the process.
type MemoryLedger struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: make(map[string]time.Time)}
}

func (l *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok, nil
}

func (l *MemoryLedger) Record(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; !ok {
		l.keys[key] = time.Now()
	}
	return nil
}

const ledgerKeyPrefix = "storepilot:applied:"

// RedisLedger shares applied keys across processes. Keys expire after ttl.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("checking ledger key: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, key string) error {
	if err := l.client.SetNX(ctx, ledgerKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("recording ledger key: %w", err)
	}
	return nil
}
