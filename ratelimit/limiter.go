// Package ratelimit throttles requests per identity with token buckets.
package ratelimit

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Buckets live in a fixed-size LRU so a flood of
// distinct keys evicts the least recently seen ones instead of growing memory.
type Limiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
	rps     rate.Limit
	burst   int
}

func New(rps float64, burst, size int) (*Limiter, error) {
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, fmt.Errorf("[ratelimit New] failed to create bucket cache: %w", err)
	}
	return &Limiter{
		buckets: cache,
		rps:     rate.Limit(rps),
		burst:   burst,
	}, nil
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(l.rps, l.burst)
	l.buckets.Add(key, b)
	return b
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	return l.buckets.Len()
}
