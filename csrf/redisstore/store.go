// Package redisstore is a csrf.Store shared between server instances through redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-course-server/csrf"
	apperrors "github.com/jrsteele09/go-course-server/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "csrf:"

var _ csrf.Store = (*Store)(nil)

// Store keeps one JSON encoded csrf.Record per identity. Redis expires keys after
// ttl + grace, so a lookup inside the grace window still reports DecisionExpired
// rather than DecisionNotFound. Any redis failure fails closed.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	grace  time.Duration
	now    func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithGrace sets how long an expired record is kept before redis drops it.
func WithGrace(grace time.Duration) Option {
	return func(s *Store) {
		s.grace = grace
	}
}

func New(addr, password string, db int, ttl time.Duration, opts ...Option) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), ttl, opts...)
}

func NewWithClient(client *redis.Client, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		client: client,
		ttl:    ttl,
		grace:  15 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Issue(ctx context.Context, identity string) (string, error) {
	rec := csrf.NewRecord(identity, s.now(), s.ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("[redisstore Issue] marshal record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+identity, data, s.ttl+s.grace).Err(); err != nil {
		return "", apperrors.Wrapf(errors.Join(apperrors.ErrStoreUnavailable, err), "[redisstore Issue] set %s", identity)
	}
	return rec.Token, nil
}

func (s *Store) Validate(ctx context.Context, identity, presented string) csrf.Decision {
	key := keyPrefix + identity
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return csrf.DecisionNotFound
	}
	if err != nil {
		log.Err(err).Str("identity", identity).Msg("csrf redis lookup failed")
		return csrf.DecisionStoreUnavailable
	}

	var rec csrf.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Err(err).Str("identity", identity).Msg("csrf redis record corrupt")
		return csrf.DecisionStoreUnavailable
	}

	if rec.Expired(s.now()) {
		// Delete only if nobody reissued in between
		if err := s.deleteIfUnchanged(ctx, key, data); err != nil {
			log.Err(err).Str("identity", identity).Msg("csrf redis eviction failed")
		}
		return csrf.DecisionExpired
	}
	if !rec.Matches(presented) {
		return csrf.DecisionMismatch
	}
	return csrf.DecisionValid
}

// Sweep is a no-op: redis expires the keys itself.
func (s *Store) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *Store) deleteIfUnchanged(ctx context.Context, key string, expected []byte) error {
	return compareAndDelete.Run(ctx, s.client, []string{key}, expected).Err()
}
