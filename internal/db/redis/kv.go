package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/nlquery/internal/db"
)

// Plain string values back the generation cache and the token budget counters.

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, opErr(db.OpGet, err)
	}
	return data, nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. ttl <= 0 stores it without
// expiry, since SET EX rejects zero.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	v := rueidis.BinaryString(value)
	if ttl <= 0 {
		return s.exec(ctx, db.OpSet, s.b().Set().Key(key).Value(v).Build())
	}
	return s.exec(ctx, db.OpSet, s.b().Set().Key(key).Value(v).Ex(ttl).Build())
}

// IncrBy atomically increments a counter.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	return s.exec(ctx, db.OpIncrBy, s.b().Incrby().Key(key).Increment(val).Build())
}

// Expire sets TTL on a key. With nx only a key without expiry gets one (EXPIRE NX),
// so a counter keeps the TTL of its first increment.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	secs := int64(ttl / time.Second)
	if nx {
		return s.exec(ctx, db.OpExpire, s.b().Expire().Key(key).Seconds(secs).Nx().Build())
	}
	return s.exec(ctx, db.OpExpire, s.b().Expire().Key(key).Seconds(secs).Build())
}

func (s *Store) exec(ctx context.Context, op string, cmd rueidis.Completed) error {
	if err := s.do(ctx, cmd).Error(); err != nil {
		return opErr(op, err)
	}
	return nil
}
