package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/nlquery/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hset(key, fields)).Error(); err != nil {
		return opErr(db.OpHSet, err)
	}
	return nil
}

func (s *Store) hset(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// ReplaceMulti overwrites every hash inside a single MULTI/EXEC block.
// Each item is deleted first so fields absent from the new version disappear.
func (s *Store) ReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, 2*len(items)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, item := range items {
		cmds = append(cmds,
			s.b().Del().Key(item.Key).Build(),
			s.hset(item.Key, item.Fields),
		)
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return fmt.Errorf("queue command %d: %w", i, opErr(db.OpHSet, err))
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpExec, Err: db.ErrTxAborted}
		}
		return opErr(db.OpExec, err)
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("reply %d: %w", i, err)}
		}
	}
	return nil
}

// HGetAll returns all fields of a hash.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, opErr(db.OpHGetAll, err)
	}
	return m, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return opErr(db.OpDel, err)
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, opErr(db.OpExists, err)
	}
	return count > 0, nil
}

// ExistsMulti checks many keys in a single DoMulti round-trip.
func (s *Store) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Exists().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]bool, len(results))
	for i, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", keys[i], opErr(db.OpExists, err))
		}
		out[i] = n > 0
	}
	return out, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, opErr(db.OpScan, err)
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
