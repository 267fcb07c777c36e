package redis

import (
	"context"

	"github.com/kailas-cloud/nlquery/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := def.CreateArgs()
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return opErr(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex removes an FT index by name, optionally deleting its documents (DD).
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []string{name}
	if deleteDocs {
		args = append(args, "DD")
	}
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if unknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return opErr(db.OpDropIndex, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if unknownIndex(err) {
			return false, nil
		}
		return false, opErr(db.OpIndexInfo, err)
	}
	return true, nil
}

// unknownIndex matches both the Redis and the valkey-search wording.
func unknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}
