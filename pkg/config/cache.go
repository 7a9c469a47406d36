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

package config

import "fmt"

// CacheConfig configures the semantic response cache.
type CacheConfig struct {
	// Enabled turns the cache on (default: true).
	Enabled *bool `yaml:"enabled,omitempty"`

	// Backend is the entry store backend: "memory" or "redis".
	Backend string `yaml:"backend,omitempty"`

	// SimilarityThreshold is the minimum cosine similarity for a lookup
	// to count as a hit. Below it a superficially similar question gets
	// a fresh answer.
	SimilarityThreshold float32 `yaml:"similarity_threshold,omitempty"`

	// TTL is the absolute entry lifetime, in seconds.
	TTL int `yaml:"ttl,omitempty"`

	// Capacity bounds the number of entries (memory backend, LRU beyond it).
	Capacity int `yaml:"capacity,omitempty"`

	// LookupTimeout bounds a cache lookup, in milliseconds. A timeout is
	// treated as a miss.
	LookupTimeout int `yaml:"lookup_timeout,omitempty"`

	// RedisAddr for the redis backend (host:port).
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// RedisPassword for the redis backend.
	RedisPassword string `yaml:"redis_password,omitempty"`

	// RedisDB selects the redis logical database.
	RedisDB int `yaml:"redis_db,omitempty"`
}

// SetDefaults applies default values.
func (c *CacheConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.92
	}
	if c.TTL == 0 {
		c.TTL = 86400 // 24h
	}
	if c.Capacity == 0 {
		c.Capacity = 10000
	}
	if c.LookupTimeout == 0 {
		c.LookupTimeout = 500
	}
	if c.Backend == "redis" && c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
}

// Validate checks the cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache backend %q (valid: memory, redis)", c.Backend)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1")
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be positive")
	}
	return nil
}
