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
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/scopes"
)

type memoryEntry struct {
	scope   *scopes.Scope
	groupID string
	expires time.Time
}

// MemoryCache is the in-process cache backend. Expired entries are dropped
// lazily on access.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	// groups indexes live token IDs by group ID. Index entries are
	// cleaned up when the token entry is removed, so the index can
	// briefly reference already-expired entries.
	groups map[string]map[string]struct{}
	clock  clockwork.Clock
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache(clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		groups:  make(map[string]map[string]struct{}),
		clock:   clock,
	}
}

// Put implements Cache.
func (c *MemoryCache) Put(ctx context.Context, tokenID string, scope *scopes.Scope, ttl time.Duration) error {
	if tokenID == "" {
		return trace.BadParameter("missing token ID")
	}
	if scope == nil {
		return trace.BadParameter("missing scope")
	}
	if ttl <= 0 {
		return trace.BadParameter("ttl must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tokenID] = memoryEntry{
		scope:   scope,
		groupID: scope.GroupID,
		expires: c.clock.Now().Add(ttl),
	}
	index, ok := c.groups[scope.GroupID]
	if !ok {
		index = make(map[string]struct{})
		c.groups[scope.GroupID] = index
	}
	index[tokenID] = struct{}{}
	return nil
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, tokenID string) (*scopes.Scope, error) {
	c.mu.RLock()
	entry, ok := c.entries[tokenID]
	c.mu.RUnlock()
	if !ok {
		return nil, trace.NotFound("scope not found for token %q", tokenID)
	}
	if !c.clock.Now().Before(entry.expires) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if cur, ok := c.entries[tokenID]; ok && !c.clock.Now().Before(cur.expires) {
			c.removeLocked(tokenID, cur.groupID)
		}
		c.mu.Unlock()
		return nil, trace.NotFound("scope expired for token %q", tokenID)
	}
	return entry.scope, nil
}

// Remove implements Cache.
func (c *MemoryCache) Remove(ctx context.Context, tokenID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[tokenID]; ok {
		c.removeLocked(tokenID, entry.groupID)
	}
	return nil
}

// RemoveByGroup implements Cache.
func (c *MemoryCache) RemoveByGroup(ctx context.Context, groupID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := c.groups[groupID]
	removed := 0
	for tokenID := range index {
		if _, ok := c.entries[tokenID]; ok {
			delete(c.entries, tokenID)
			removed++
		}
	}
	delete(c.groups, groupID)
	return removed, nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	c.groups = make(map[string]map[string]struct{})
	return nil
}

// removeLocked drops one entry and its group index reference. Callers hold
// the write lock.
func (c *MemoryCache) removeLocked(tokenID, groupID string) {
	delete(c.entries, tokenID)
	if index, ok := c.groups[groupID]; ok {
		delete(index, tokenID)
		if len(index) == 0 {
			delete(c.groups, groupID)
		}
	}
}
