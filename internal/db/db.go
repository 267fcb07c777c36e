package db

import (
	"context"
	"time"
)

// Store is what a driver (redis, valkey, memory) implements. Repositories and
// usecases take only the narrow interfaces below.
//
//nolint:interfacebloat // driver surface, consumers depend on sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger backs the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one flattened document: its storage key and string fields.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore holds documents and collection metadata as hashes.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	// ReplaceMulti overwrites every hash in one MULTI/EXEC transaction:
	// either all items are written or none are.
	ReplaceMulti(ctx context.Context, items []HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore holds generation cache entries, usage counters and locks.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	// Expire sets a TTL; with nx it only applies to keys that have no expiry yet.
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// IndexManager creates and drops the per-collection FT index.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index; deleteDocs also deletes the indexed hashes (DD).
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs structured filters, free-text fallback and counts against an index.
type Searcher interface {
	SearchFilter(ctx context.Context, q *FilterQuery) (*SearchResult, error)
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}
