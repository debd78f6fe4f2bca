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

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"

	"github.com/gravitational/graphscope/lib/scopes"
)

const (
	scopeKeyPrefix = "graphscope:scope:"
	groupKeyPrefix = "graphscope:group:"
)

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	// Addr is the redis connection address. Required.
	Addr string
	// Password is the optional redis password.
	Password string
	// client overrides the constructed client, used in tests.
	client *redis.Client
}

// RedisCache is the shared cache backend. Entry expiry is delegated to
// redis key TTLs; the group index set carries its own TTL so abandoned
// indexes do not accumulate.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache returns a cache backed by the redis instance at cfg.Addr.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if cfg.client != nil {
		return &RedisCache{client: cfg.client}, nil
	}
	if cfg.Addr == "" {
		return nil, trace.BadParameter("missing parameter Addr")
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
		}),
	}, nil
}

// NewRedisCacheFromClient wraps an existing client, used in tests.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, tokenID string, scope *scopes.Scope, ttl time.Duration) error {
	if tokenID == "" {
		return trace.BadParameter("missing token ID")
	}
	if scope == nil {
		return trace.BadParameter("missing scope")
	}
	if ttl <= 0 {
		return trace.BadParameter("ttl must be positive")
	}
	payload, err := json.Marshal(scope)
	if err != nil {
		return trace.Wrap(err)
	}

	groupKey := groupKeyPrefix + scope.GroupID
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, scopeKeyPrefix+tokenID, payload, ttl)
	pipe.SAdd(ctx, groupKey, tokenID)
	// The index only needs to live as long as its newest member.
	pipe.Expire(ctx, groupKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return trace.ConnectionProblem(err, "failed to store scope")
	}
	return nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, tokenID string) (*scopes.Scope, error) {
	payload, err := c.client.Get(ctx, scopeKeyPrefix+tokenID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, trace.NotFound("scope not found for token %q", tokenID)
		}
		return nil, trace.ConnectionProblem(err, "failed to fetch scope")
	}
	var scope scopes.Scope
	if err := json.Unmarshal(payload, &scope); err != nil {
		return nil, trace.Wrap(err)
	}
	return &scope, nil
}

// Remove implements Cache.
func (c *RedisCache) Remove(ctx context.Context, tokenID string) error {
	scope, err := c.Get(ctx, tokenID)
	if err != nil && !trace.IsNotFound(err) {
		return trace.Wrap(err)
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, scopeKeyPrefix+tokenID)
	if scope != nil {
		pipe.SRem(ctx, groupKeyPrefix+scope.GroupID, tokenID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return trace.ConnectionProblem(err, "failed to remove scope")
	}
	return nil
}

// RemoveByGroup implements Cache.
func (c *RedisCache) RemoveByGroup(ctx context.Context, groupID string) (int, error) {
	groupKey := groupKeyPrefix + groupID
	tokenIDs, err := c.client.SMembers(ctx, groupKey).Result()
	if err != nil {
		return 0, trace.ConnectionProblem(err, "failed to read group index")
	}
	if len(tokenIDs) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(tokenIDs)+1)
	for _, tokenID := range tokenIDs {
		keys = append(keys, scopeKeyPrefix+tokenID)
	}
	keys = append(keys, groupKey)
	removed, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, trace.ConnectionProblem(err, "failed to evict group scopes")
	}
	// Do not count the index key itself.
	if removed > 0 {
		removed--
	}
	return int(removed), nil
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return trace.Wrap(c.client.Close())
}
