// Package csrf issues per-identity CSRF tokens and checks them on state-changing requests.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// TokenBytes is the amount of randomness in every issued token (256 bits).
const TokenBytes = 32

// Record is the live token for one identity.
type Record struct {
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is no longer valid at now (expiresAt <= now).
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Matches compares the presented token byte-for-byte in constant time.
func (r Record) Matches(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(r.Token), []byte(presented)) == 1
}

// Store holds at most one record per identity.
//
// Issue overwrites any prior record. Validate never extends a record's expiry and
// evicts it when it finds it expired. Sweep removes every record with expiresAt <= now
// and returns how many it removed.
type Store interface {
	Issue(ctx context.Context, identity string) (string, error)
	Validate(ctx context.Context, identity, presented string) Decision
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// NewRecord builds a record with a fresh random token valid for ttl from now.
func NewRecord(identity string, now time.Time, ttl time.Duration) Record {
	return Record{
		Identity:  identity,
		Token:     generateToken(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func generateToken() string {
	b := make([]byte, TokenBytes)
	// crypto/rand.Read never returns an error and aborts the process if the OS source fails
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
