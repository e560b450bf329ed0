// Package cache stores embeddings keyed by tenant, model and normalized text.
//
// Keys are "<prefix>:<len>:<tenant>:<len>:<model>:<sha256 of normalized text>".
// The length prefixes keep ids that contain ':' from colliding. Normalizing
// trims the text and collapses internal whitespace runs to one space, so texts
// that differ only in spacing share an entry. Cache errors are never fatal to
// a request; callers treat them as misses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Cache is implemented by every backend.
type Cache interface {
	// Get returns the vector for text, or found == false on a miss.
	Get(ctx context.Context, tenantID, model, text string) (vector []float32, found bool, err error)

	// Put stores vector for text, replacing any existing entry.
	Put(ctx context.Context, tenantID, model, text string, vector []float32) error

	// InvalidateTenantModel drops every entry for the tenant and model.
	InvalidateTenantModel(ctx context.Context, tenantID, model string) error
}

var ErrEmptyTenant = errors.New("cache: tenant id is empty")

// Entry is the stored value. Entries are replaced, never updated in place.
type Entry struct {
	Vector    []float32  `json:"vector"`
	Valid     bool       `json:"valid"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func newEntry(vector []float32, ttl time.Duration, now time.Time) Entry {
	e := Entry{Vector: vector, Valid: true, CreatedAt: now.UTC()}
	if ttl > 0 {
		exp := now.Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	return e
}

// usable reports whether the entry may be served at now.
func (e Entry) usable(now time.Time) bool {
	if !e.Valid || len(e.Vector) == 0 {
		return false
	}
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// Normalize trims text and collapses whitespace runs to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Hash returns the hex SHA-256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Key builds the storage key for text.
func Key(prefix, tenantID, model, text string) string {
	return scopePrefix(prefix, tenantID, model) + Hash(text)
}

// scopePrefix is the common key prefix of one tenant and model. Each id is
// written as "<byte length>:<id>:", so no scope is a prefix of another's keys.
func scopePrefix(prefix, tenantID, model string) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	for _, part := range [...]string{tenantID, model} {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
		b.WriteByte(':')
	}
	return b.String()
}
