// GraphScope
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package cache stores materialized scopes keyed by token ID, with a
// group-indexed invalidation path used by admin refresh.
package cache

import (
	"context"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/scopes"
)

// Cache is the scope store. Implementations are safe for concurrent use and
// preserve per-key linearizability: a Get after a Put for the same token ID
// observes that Put, and a Get after RemoveByGroup of the scope's group
// observes the removal. The group index may briefly outlive individual
// entries.
type Cache interface {
	// Put stores scope under tokenID for ttl and indexes it by the
	// scope's group.
	Put(ctx context.Context, tokenID string, scope *scopes.Scope, ttl time.Duration) error
	// Get returns the scope stored under tokenID, or trace.NotFound when
	// absent or expired.
	Get(ctx context.Context, tokenID string) (*scopes.Scope, error)
	// Remove drops one entry. Removing an absent entry is not an error.
	Remove(ctx context.Context, tokenID string) error
	// RemoveByGroup evicts every entry currently indexed for groupID and
	// returns how many were dropped.
	RemoveByGroup(ctx context.Context, groupID string) (int, error)
	// Close releases backend resources.
	Close() error
}

// Config selects and configures a cache backend.
type Config struct {
	// Backend is "memory" or "redis".
	Backend string
	// RedisAddr is the redis connection address, required for the redis
	// backend.
	RedisAddr string
	// RedisPassword is the optional redis password.
	RedisPassword string
	// Clock drives expiry for the memory backend.
	Clock clockwork.Clock
}

const (
	// BackendMemory holds scopes in process memory.
	BackendMemory = "memory"
	// BackendRedis holds scopes in a shared redis, letting multiple
	// proxy instances serve tokens minted by any of them.
	BackendRedis = "redis"
)

// New returns the cache backend selected by cfg.
func New(cfg Config) (Cache, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(cfg.Clock), nil
	case BackendRedis, "distributed":
		return NewRedisCache(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	default:
		return nil, trace.BadParameter("unsupported cache backend %q", cfg.Backend)
	}
}
