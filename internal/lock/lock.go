// Package lock provides per-collection reader/writer exclusion within the
// process and an optional cross-instance lock for destructive operations.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotAcquired signals that a distributed lock stayed held by another instance until the deadline.
var ErrNotAcquired = errors.New("lock not acquired")

// Keyed hands out one RWMutex per name. The zero value is ready to use.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func (k *Keyed) get(name string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.RWMutex)
	}
	l, ok := k.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[name] = l
	}
	return l
}

// RLock takes the shared side for name and returns its release func.
func (k *Keyed) RLock(name string) func() {
	l := k.get(name)
	l.RLock()
	return l.RUnlock
}

// Lock takes the exclusive side for name and returns its release func.
func (k *Keyed) Lock(name string) func() {
	l := k.get(name)
	l.Lock()
	return l.Unlock
}

// Distributed is a named lock shared across instances.
type Distributed interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Noop is a Distributed lock that is always granted. Used when a single instance runs.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }

// Release does nothing.
func (Noop) Release(context.Context, string) error { return nil }

// Wait polls Acquire every interval until the lock is granted or ctx ends.
func Wait(ctx context.Context, d Distributed, name string, ttl, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := d.Acquire(ctx, name, ttl)
		if err != nil {
			return fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire %s: %w: %w", name, ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}
