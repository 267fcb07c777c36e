// Package store manages the lifecycle, writes and searches of the document collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/domain/search/text"
	"github.com/kailas-cloud/nlquery/internal/lock"
	"github.com/kailas-cloud/nlquery/internal/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 1000
	lockInterval = 100 * time.Millisecond
)

// UpsertReport is the outcome of one Upsert call, per document in input order.
type UpsertReport struct {
	Counts  batch.Counts
	Results []batch.Result
}

// Info describes the collection.
type Info struct {
	Name        string
	Fingerprint string
	CreatedAt   int64
	Documents   int
	Schema      schema.Schema
}

// Service binds one named collection to the index service.
type Service struct {
	name        string
	collections CollectionRepository
	docs        DocumentRepository
	search      SearchRepository
	locks       lock.Keyed
	dist        lock.Distributed
	lockTTL     time.Duration
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDistributedLock serialises recreates across instances.
func WithDistributedLock(d lock.Distributed, ttl time.Duration) Option {
	return func(s *Service) {
		if d != nil {
			s.dist = d
		}
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// New creates a store service for the named collection.
func New(
	name string,
	collections CollectionRepository, docs DocumentRepository, search SearchRepository,
	log *zap.Logger, opts ...Option,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		name:        name,
		collections: collections,
		docs:        docs,
		search:      search,
		dist:        lock.Noop{},
		lockTTL:     30 * time.Second,
		logger:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the collection name.
func (s *Service) Name() string { return s.name }

// EnsureCollection creates the collection for sch. It is a no-op when the collection
// already exists with the same schema, and fails with domain.ErrSchema when the schema
// differs unless recreate is set, in which case the collection and its documents are dropped first.
func (s *Service) EnsureCollection(ctx context.Context, sch schema.Schema, recreate bool) (domcol.Collection, error) {
	want, err := domcol.New(s.name, sch)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("validate collection: %w: %w", domain.ErrSchema, err)
	}

	unlock := s.locks.Lock(s.name)
	defer unlock()

	if recreate {
		lockName := "recreate:" + s.name
		if err := lock.Wait(ctx, s.dist, lockName, s.lockTTL, lockInterval); err != nil {
			return domcol.Collection{}, classify("lock collection", err)
		}
		defer func() {
			if err := s.dist.Release(context.WithoutCancel(ctx), lockName); err != nil {
				s.logger.Warn("release recreate lock", zap.String("collection", s.name), zap.Error(err))
			}
		}()
	}

	existing, err := s.collections.Get(ctx, s.name)
	switch {
	case err == nil:
		if !recreate {
			return s.reuse(ctx, existing, want)
		}
		if err := s.collections.Delete(ctx, s.name); err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
			return domcol.Collection{}, classify("drop collection", err)
		}
		s.logger.Info("dropped collection", zap.String("collection", s.name),
			zap.String("fingerprint", existing.Fingerprint()))
	case errors.Is(err, domain.ErrCollectionNotFound):
	default:
		return domcol.Collection{}, classify("get collection", err)
	}

	if err := s.collections.Create(ctx, want); err != nil {
		if errors.Is(err, domain.ErrCollectionExists) {
			// another instance created it between Get and Create
			existing, gerr := s.collections.Get(ctx, s.name)
			if gerr != nil {
				return domcol.Collection{}, classify("get collection", gerr)
			}
			return s.reuse(ctx, existing, want)
		}
		return domcol.Collection{}, classify("create collection", err)
	}

	s.logger.Info("created collection", zap.String("collection", s.name),
		zap.String("fingerprint", want.Fingerprint()), zap.Bool("recreate", recreate))
	return want, nil
}

func (s *Service) reuse(ctx context.Context, existing, want domcol.Collection) (domcol.Collection, error) {
	if !existing.Matches(want.Schema()) {
		return domcol.Collection{}, domain.NewSchemaMismatch(s.name, existing.Fingerprint(), want.Fingerprint())
	}
	ok, err := s.collections.IndexExists(ctx, s.name)
	if err != nil {
		return domcol.Collection{}, classify("check index", err)
	}
	if !ok {
		return domcol.Collection{}, fmt.Errorf("collection %q has metadata but no index: %w", s.name, domain.ErrSchema)
	}
	return existing, nil
}

// Upsert writes documents keyed by id. Documents that do not conform to the schema are
// reported as failed and not written; the rest is written in one transaction.
func (s *Service) Upsert(ctx context.Context, docs []record.Flattened) (UpsertReport, error) {
	if len(docs) == 0 {
		return UpsertReport{}, nil
	}

	unlock := s.locks.RLock(s.name)
	defer unlock()

	col, err := s.collection(ctx)
	if err != nil {
		return UpsertReport{}, err
	}

	results := make([]batch.Result, len(docs))
	valid := make([]record.Flattened, 0, len(docs))
	positions := make([]int, 0, len(docs))
	for i, d := range docs {
		if err := Validate(d, col.Schema()); err != nil {
			results[i] = batch.NewError(d.ID(), err)
			continue
		}
		valid = append(valid, d)
		positions = append(positions, i)
	}

	if len(valid) > 0 {
		written, err := s.docs.Upsert(ctx, s.name, valid)
		if err != nil {
			return UpsertReport{}, classify("upsert documents", err)
		}
		for j, r := range written {
			results[positions[j]] = r
		}
	}

	counts := batch.Tally(results)
	logger.FromContext(ctx).Debug("upserted documents", zap.String("collection", s.name),
		zap.Int("inserted", counts.Inserted), zap.Int("updated", counts.Updated), zap.Int("failed", counts.Failed))
	return UpsertReport{Counts: counts, Results: results}, nil
}

// Search runs a filtered search, or a free-text search over _source when freeText is set.
// At least one of them is required. Clauses the schema cannot execute are dropped.
func (s *Service) Search(ctx context.Context, filters filter.Expression, freeText string, limit int) (result.Set, error) {
	freeText = strings.TrimSpace(freeText)
	if filters.IsEmpty() && freeText == "" {
		return result.Set{}, fmt.Errorf("filter or free text is required: %w", domain.ErrInvalidQuery)
	}

	unlock := s.locks.RLock(s.name)
	defer unlock()

	col, err := s.collection(ctx)
	if err != nil {
		return result.Set{}, err
	}

	pruned, rejected := col.Schema().PruneFilter(filters)
	if len(rejected) > 0 {
		logger.FromContext(ctx).Debug("dropped filter clauses", zap.Int("dropped", len(rejected)))
	}

	if freeText != "" {
		terms := text.Terms(freeText)
		if len(terms) == 0 && pruned.IsEmpty() {
			return result.NewSet(nil, 0), nil
		}
		if len(terms) > 0 {
			set, err := s.search.Text(ctx, col, terms, pruned, clampLimit(limit))
			if err != nil {
				return result.Set{}, classify("search text", err)
			}
			return set, nil
		}
	}
	if pruned.IsEmpty() {
		return result.NewSet(nil, 0), nil
	}

	set, err := s.search.Filter(ctx, col, pruned, 0, clampLimit(limit))
	if err != nil {
		return result.Set{}, classify("search filter", err)
	}
	return set, nil
}

// List returns up to limit documents in store order.
func (s *Service) List(ctx context.Context, limit int) (result.Set, error) {
	unlock := s.locks.RLock(s.name)
	defer unlock()

	col, err := s.collection(ctx)
	if err != nil {
		return result.Set{}, err
	}
	set, err := s.search.Filter(ctx, col, filter.Expression{}, 0, clampLimit(limit))
	if err != nil {
		return result.Set{}, classify("list documents", err)
	}
	return set, nil
}

// Info returns the collection metadata and document count.
func (s *Service) Info(ctx context.Context) (Info, error) {
	unlock := s.locks.RLock(s.name)
	defer unlock()

	col, err := s.collection(ctx)
	if err != nil {
		return Info{}, err
	}
	n, err := s.search.Count(ctx, s.name)
	if err != nil {
		return Info{}, classify("count documents", err)
	}
	return Info{
		Name:        col.Name(),
		Fingerprint: col.Fingerprint(),
		CreatedAt:   col.CreatedAt(),
		Documents:   n,
		Schema:      col.Schema(),
	}, nil
}

// Schema returns the schema the collection is bound to.
func (s *Service) Schema(ctx context.Context) (schema.Schema, error) {
	col, err := s.collection(ctx)
	if err != nil {
		return schema.Schema{}, err
	}
	return col.Schema(), nil
}

func (s *Service) collection(ctx context.Context) (domcol.Collection, error) {
	col, err := s.collections.Get(ctx, s.name)
	if err != nil {
		return domcol.Collection{}, classify("get collection", err)
	}
	return col, nil
}

// Validate checks a flattened document against the schema: no undeclared keys,
// every required field present, numeric fields holding numbers and enumerated
// fields holding an allowed value.
func Validate(d record.Flattened, sch schema.Schema) error {
	if d.ID() == "" {
		return fmt.Errorf("document id is required: %w", domain.ErrSchema)
	}
	for _, k := range d.Keys() {
		if !sch.Allows(k) {
			return fmt.Errorf("field %q is not in the schema: %w", k, domain.ErrSchema)
		}
	}
	for _, name := range sch.Required() {
		v, ok := d.Get(name)
		if !ok || record.Stringify(v) == "" {
			return fmt.Errorf("required field %q is missing: %w", name, domain.ErrSchema)
		}
	}
	for _, f := range sch.Fields() {
		v, ok := d.Get(f.Name())
		if !ok {
			continue
		}
		if vals := f.Values(); len(vals) > 0 {
			if str := record.Stringify(v); str != "" && !slices.Contains(vals, str) {
				return fmt.Errorf("field %q does not allow value %q: %w", f.Name(), str, domain.ErrSchema)
			}
		}
		if !f.Type().IsNumeric() {
			continue
		}
		switch n := v.(type) {
		case int64, float64:
		case string:
			if _, err := strconv.ParseFloat(n, 64); err != nil {
				return fmt.Errorf("field %q expects a number, got %q: %w", f.Name(), n, domain.ErrSchema)
			}
		default:
			return fmt.Errorf("field %q expects a number: %w", f.Name(), domain.ErrSchema)
		}
	}
	return nil
}

// classify marks connectivity failures as domain.ErrStoreUnavailable and a dropped
// index as domain.ErrCollectionNotFound.
func classify(op string, err error) error {
	switch {
	case db.IsUnavailable(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, lock.ErrNotAcquired):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrCollectionNotFound, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
