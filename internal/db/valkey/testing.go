package valkey

import (
	"github.com/redis/rueidis"

	dbredis "github.com/kailas-cloud/nlquery/internal/db/redis"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{Store: dbredis.NewStoreForTest(c)}
}
