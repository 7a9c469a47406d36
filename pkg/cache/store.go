package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kadirpekel/sensei/pkg/agents"
)

// ErrNotFound is returned when an entry does not exist or has expired.
var ErrNotFound = errors.New("cache entry not found")

// Entry is a stored response with its bookkeeping.
type Entry struct {
	// ID is the deterministic key identifier (Key.ID()).
	ID string `json:"id"`

	// TenantID is kept for diagnostics and scoped invalidation.
	TenantID string `json:"tenant_id"`

	// Intent the entry was generated for.
	Intent string `json:"intent"`

	// Response is the cached specialist response.
	Response agents.AgentResponse `json:"response"`

	// CreatedAt is the generation time.
	CreatedAt time.Time `json:"created_at"`

	// HitCount is incremented on every similarity hit.
	HitCount int64 `json:"hit_count"`
}

// EntryStore persists cache entries. Implementations own TTL expiry;
// callers never see an expired entry.
type EntryStore interface {
	// Get returns the entry by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// Put stores or overwrites an entry.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, id string) error

	// Touch increments the entry's hit count and returns the new value.
	Touch(ctx context.Context, id string) (int64, error)

	Close() error
}
