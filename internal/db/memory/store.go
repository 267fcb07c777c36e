// Package memory implements db.Store in process. It answers the same hash,
// index and search calls as the Redis driver and backs tests and single-node runs.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/db/match"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store keeps hashes, plain values and index definitions in maps guarded by one lock.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	values  map[string]kvEntry
	indexes map[string]*db.IndexDefinition
	closed  bool
	now     func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		values:  make(map[string]kvEntry),
		indexes: make(map[string]*db.IndexDefinition),
		now:     time.Now,
	}
}

// Ping fails once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return db.Wrap(db.OpPing, db.ErrUnavailable)
	}
	return nil
}

// Close marks the store unavailable.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

func (s *Store) check(op string) error {
	if s.closed {
		return db.Wrap(op, db.ErrUnavailable)
	}
	return nil
}

// --- Hashes ---

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpHSet); err != nil {
		return err
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// ReplaceMulti overwrites every hash under a single lock acquisition.
func (s *Store) ReplaceMulti(_ context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpExec); err != nil {
		return err
	}
	for _, item := range items {
		h := make(map[string]string, len(item.Fields))
		for k, v := range item.Fields {
			h[k] = v
		}
		s.hashes[item.Key] = h
	}
	return nil
}

// HGetAll returns a copy of the hash. A missing key yields an empty map, as in Redis.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(db.OpHGetAll); err != nil {
		return nil, err
	}
	return match.Project(s.hashes[key], nil), nil
}

// Del removes a hash or plain value.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpDel); err != nil {
		return err
	}
	delete(s.hashes, key)
	delete(s.values, key)
	return nil
}

// Exists reports whether key holds a hash or an unexpired value.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(db.OpExists); err != nil {
		return false, err
	}
	return s.exists(key), nil
}

// ExistsMulti checks many keys under one read lock.
func (s *Store) ExistsMulti(_ context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(db.OpExists); err != nil {
		return nil, err
	}
	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = s.exists(k)
	}
	return out, nil
}

func (s *Store) exists(key string) bool {
	if _, ok := s.hashes[key]; ok {
		return true
	}
	_, ok := s.value(key)
	return ok
}

// Scan returns the keys matching a glob pattern in sorted order.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(db.OpScan); err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range s.values {
		if _, live := s.value(k); !live {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --- Plain values ---

// Get returns the value at key or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(db.OpGet); err != nil {
		return nil, err
	}
	e, ok := s.value(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value without expiration.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. Zero ttl never expires.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpSet); err != nil {
		return err
	}
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = e
	return nil
}

// IncrBy adds val to the integer stored at key, keeping its expiry.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpIncrBy); err != nil {
		return err
	}
	e, ok := s.value(key)
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("value is not an integer")}
		}
		n = parsed
	} else {
		e = kvEntry{}
	}
	e.value = []byte(strconv.FormatInt(n+val, 10))
	s.values[key] = e
	return nil
}

// Expire sets a TTL on a plain value. With nx, keys that already expire are left alone.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpExpire); err != nil {
		return err
	}
	e, ok := s.value(key)
	if !ok || (nx && !e.expiresAt.IsZero()) {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.values[key] = e
	return nil
}

func (s *Store) value(key string) (kvEntry, bool) {
	e, ok := s.values[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		return kvEntry{}, false
	}
	return e, true
}

// --- Indexes ---

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid index: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpCreateIndex); err != nil {
		return err
	}
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	cp := *def
	cp.Prefixes = append([]string(nil), def.Prefixes...)
	cp.Fields = append([]db.IndexField(nil), def.Fields...)
	s.indexes[def.Name] = &cp
	return nil
}

// DropIndex removes an index and, with deleteDocs, every hash under its prefixes.
func (s *Store) DropIndex(_ context.Context, name string, deleteDocs bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(db.OpDropIndex); err != nil {
		return err
	}
	def, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	if deleteDocs {
		for k := range s.hashes {
			if hasPrefix(def, k) {
				delete(s.hashes, k)
			}
		}
	}
	return nil
}

// IndexExists reports whether the index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(db.OpIndexInfo); err != nil {
		return false, err
	}
	_, ok := s.indexes[name]
	return ok, nil
}

func hasPrefix(def *db.IndexDefinition, key string) bool {
	if len(def.Prefixes) == 0 {
		return true
	}
	for _, p := range def.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// --- Search ---

// SearchFilter lists documents of the index that satisfy the filter, ordered by key.
func (s *Store) SearchFilter(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates, err := s.candidates(q.IndexName)
	if err != nil {
		return nil, err
	}

	entries := make([]db.SearchEntry, 0, len(candidates))
	for _, c := range candidates {
		if match.Filter(q.Filters, c.Fields, q.NumericFields) {
			entries = append(entries, db.SearchEntry{Key: c.Key, Fields: match.Project(c.Fields, q.ReturnFields)})
		}
	}
	return &db.SearchResult{Total: len(entries), Entries: match.Page(entries, q.Offset, q.Limit)}, nil
}

// SearchText ranks filtered documents by the fraction of terms found in the attribute.
func (s *Store) SearchText(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Attribute == "" {
		return nil, fmt.Errorf("attribute is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if len(q.Terms) == 0 {
		return &db.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.indexes[q.IndexName]
	if !ok {
		if err := s.check(db.OpSearch); err != nil {
			return nil, err
		}
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	field, ok := textField(def, q.Attribute)
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("unknown text attribute %q", q.Attribute)}
	}

	candidates, err := s.candidates(q.IndexName)
	if err != nil {
		return nil, err
	}
	filtered := candidates[:0]
	for _, c := range candidates {
		if match.Filter(q.Filters, c.Fields, q.NumericFields) {
			filtered = append(filtered, c)
		}
	}

	ranked := match.Rank(filtered, field, q.Terms)
	page := match.Page(ranked, 0, q.Limit)
	for i := range page {
		page[i].Fields = match.Project(page[i].Fields, q.ReturnFields)
	}
	return &db.SearchResult{Total: len(ranked), Entries: page}, nil
}

// SearchCount returns the number of documents under the index prefixes.
func (s *Store) SearchCount(_ context.Context, index string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates, err := s.candidates(index)
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}

// candidates returns the documents of an index sorted by key. Callers hold the read lock.
func (s *Store) candidates(index string) ([]match.Candidate, error) {
	if err := s.check(db.OpSearch); err != nil {
		return nil, err
	}
	def, ok := s.indexes[index]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	out := make([]match.Candidate, 0)
	for k, h := range s.hashes {
		if hasPrefix(def, k) {
			out = append(out, match.Candidate{Key: k, Fields: h})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func textField(def *db.IndexDefinition, attribute string) (string, bool) {
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Type == db.IndexFieldText && f.Attribute() == attribute {
			return f.Name, true
		}
	}
	return "", false
}
