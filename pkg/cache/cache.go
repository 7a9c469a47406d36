// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache implements a semantic response cache.
//
// Entries are keyed by (tenant, intent, profile fingerprint) and matched by
// embedding similarity over the normalized query text, so a rephrased
// question can hit an answer generated for its near-duplicate. Responses
// live in an EntryStore (memory or redis) while the query embeddings live
// in a vector index; the two are joined by the deterministic Key.ID().
//
// The cache never blocks the request path longer than the configured lookup
// timeout. Every internal failure degrades to a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/sensei/pkg/agents"
	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/embedders"
	"github.com/kadirpekel/sensei/pkg/vector"
)

// cacheCollection is the vector index collection holding key embeddings.
const cacheCollection = "semantic_cache"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Stores int64 `json:"stores"`
}

// SemanticCache serves previously generated responses for semantically
// similar queries.
type SemanticCache struct {
	embedder      embedders.Embedder
	index         vector.Provider
	store         EntryStore
	threshold     float32
	lookupTimeout time.Duration
	logger        *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64
}

// NewFromConfig builds the cache with the configured entry store backend.
// The vector index is shared with the rest of the system; the cache owns
// its own collection inside it.
func NewFromConfig(ctx context.Context, embedder embedders.Embedder, index vector.Provider, cfg *config.CacheConfig) (*SemanticCache, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if cfg == nil {
		cfg = &config.CacheConfig{}
		cfg.SetDefaults()
	}

	c := &SemanticCache{
		embedder:      embedder,
		index:         index,
		threshold:     cfg.SimilarityThreshold,
		lookupTimeout: time.Duration(cfg.LookupTimeout) * time.Millisecond,
		logger:        slog.Default().With("component", "cache"),
	}

	ttl := time.Duration(cfg.TTL) * time.Second

	switch cfg.Backend {
	case "memory":
		// Evictions must also drop the companion vector, or lookups would
		// keep matching embeddings whose entries are gone.
		store, err := NewMemoryStore(cfg.Capacity, ttl, c.removeVector)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory store: %w", err)
		}
		c.store = store

	case "redis":
		store, err := NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		c.store = store

	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.Backend)
	}

	return c, nil
}

// New creates a cache over explicit dependencies. Used by tests and by
// callers that manage the store themselves.
func New(embedder embedders.Embedder, index vector.Provider, store EntryStore, threshold float32, lookupTimeout time.Duration) *SemanticCache {
	return &SemanticCache{
		embedder:      embedder,
		index:         index,
		store:         store,
		threshold:     threshold,
		lookupTimeout: lookupTimeout,
		logger:        slog.Default().With("component", "cache"),
	}
}

// Lookup finds a cached response semantically similar to key. The boolean
// reports a hit. Any internal failure or timeout is a miss, never an error.
func (c *SemanticCache) Lookup(ctx context.Context, key Key) (*Entry, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	vec, err := c.embedder.Embed(ctx, key.NormalizedText)
	if err != nil {
		c.logger.Warn("lookup embedding failed, treating as miss", "error", err)
		return c.miss()
	}

	filter := map[string]any{
		"tenant_id":   key.TenantID,
		"intent":      key.Intent,
		"fingerprint": key.Fingerprint,
	}

	results, err := c.index.SearchWithFilter(ctx, cacheCollection, vec, 1, filter)
	if err != nil {
		c.logger.Warn("lookup search failed, treating as miss", "error", err)
		return c.miss()
	}

	if len(results) == 0 || results[0].Score < c.threshold {
		return c.miss()
	}

	entry, err := c.store.Get(ctx, results[0].ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The entry expired or was evicted but its vector survived.
			// Drop the orphan so it stops matching.
			c.removeVector(results[0].ID)
		} else {
			c.logger.Warn("entry store read failed, treating as miss", "error", err)
		}
		return c.miss()
	}

	if hits, err := c.store.Touch(ctx, entry.ID); err == nil {
		entry.HitCount = hits
	}

	c.hits.Add(1)
	c.logger.Debug("cache hit",
		"tenant", key.TenantID,
		"intent", key.Intent,
		"similarity", results[0].Score,
		"hit_count", entry.HitCount)
	return entry, true
}

// Store writes a generated response under key. Idempotent: the same key
// overwrites its previous entry and vector instead of duplicating.
func (c *SemanticCache) Store(ctx context.Context, key Key, response agents.AgentResponse) error {
	vec, err := c.embedder.Embed(ctx, key.NormalizedText)
	if err != nil {
		return fmt.Errorf("failed to embed cache key: %w", err)
	}

	id := key.ID()
	entry := &Entry{
		ID:        id,
		TenantID:  key.TenantID,
		Intent:    key.Intent,
		Response:  response,
		CreatedAt: time.Now(),
	}

	if err := c.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	metadata := map[string]any{
		"content":     key.NormalizedText,
		"tenant_id":   key.TenantID,
		"intent":      key.Intent,
		"fingerprint": key.Fingerprint,
	}
	if err := c.index.Upsert(ctx, cacheCollection, id, vec, metadata); err != nil {
		// Roll back the entry so the store and index stay consistent.
		_ = c.store.Delete(ctx, id)
		return fmt.Errorf("failed to index cache key: %w", err)
	}

	c.stores.Add(1)
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *SemanticCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Stores: c.stores.Load(),
	}
}

// Close releases the entry store.
func (c *SemanticCache) Close() error {
	return c.store.Close()
}

func (c *SemanticCache) miss() (*Entry, bool) {
	c.misses.Add(1)
	return nil, false
}

// removeVector deletes a key embedding outside any caller deadline. Called
// on store evictions and on orphan detection during lookup.
func (c *SemanticCache) removeVector(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.index.Delete(ctx, cacheCollection, id); err != nil {
		c.logger.Debug("failed to remove cache vector", "id", id, "error", err)
	}
}
