// Package redis implements lock.Distributed on Redis with SET NX and an owner check on release.
package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kailas-cloud/nlquery/internal/lock"
)

// Verify interface compliance
var _ lock.Distributed = (*Lock)(nil)

// Lock implements lock.Distributed using Redis SETNX with TTL.
// A unique owner id keeps other instances from releasing it.
type Lock struct {
	client  redis.UniversalClient
	prefix  string
	ownerID string
}

// NewLock creates a Redis-backed lock with keys under prefix+"lock:".
func NewLock(client redis.UniversalClient, prefix string) *Lock {
	return &Lock{
		client:  client,
		prefix:  prefix + "lock:",
		ownerID: generateOwnerID(),
	}
}

// generateOwnerID returns hostname:pid:uuid.
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString())
}

// Acquire sets the lock key if absent. Returns false when another owner holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// releaseScript deletes the key only while it still holds our owner id.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release deletes the lock if this instance holds it. Releasing an expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.ownerID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *Lock) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// OwnerID returns the identifier written into held locks.
func (l *Lock) OwnerID() string { return l.ownerID }
