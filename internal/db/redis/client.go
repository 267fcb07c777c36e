package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/nlquery/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters shared by the Redis and Valkey stores.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration // zero keeps the rueidis default
	ClientName  string        // reported in CLIENT LIST
}

// ClientOption converts cfg into rueidis options. Client-side caching is off and
// RESP2 is forced: FT.SEARCH replies are parsed as flat arrays.
func (cfg Config) ClientOption() (rueidis.ClientOption, error) {
	if len(cfg.Addrs) == 0 {
		return rueidis.ClientOption{}, errors.New("addrs is required")
	}
	opt := rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   cfg.ClientName,
		DisableCache: true,
		AlwaysRESP2:  true,
	}
	if cfg.DialTimeout > 0 {
		opt.Dialer = net.Dialer{Timeout: cfg.DialTimeout}
	}
	return opt, nil
}

// Store implements db.Store via rueidis for Redis 8+ with the Query Engine.
type Store struct {
	client rueidis.Client
}

// NewStore connects to Redis.
func NewStore(cfg Config) (*Store, error) {
	client, err := Dial(cfg)
	if err != nil {
		return nil, err
	}
	return FromClient(client), nil
}

// Dial opens a rueidis client for cfg.
func Dial(cfg Config) (rueidis.Client, error) {
	opt, err := cfg.ClientOption()
	if err != nil {
		return nil, err
	}
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", strings.Join(cfg.Addrs, ","), err)
	}
	return client, nil
}

// FromClient wraps an already configured rueidis client.
func FromClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", opErr(db.OpPing, err))
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings until the store answers, reporting the last ping error on timeout.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var last error
	for {
		if last = s.Ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, last)
		case <-ticker.C:
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// opErr wraps err with the command name. Anything that is not a server reply
// (dial failures, timeouts, cancelled contexts) is also marked db.ErrUnavailable.
func opErr(op string, err error) error {
	if _, ok := rueidis.IsRedisErr(err); !ok && !rueidis.IsRedisNil(err) {
		err = fmt.Errorf("%w: %w", db.ErrUnavailable, err)
	}
	return db.Wrap(op, err)
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
