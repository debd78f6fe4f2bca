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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/graphscope/lib/scopes"
)

func testScope(groupID string, mails ...string) *scopes.Scope {
	resources := make([]scopes.Resource, 0, len(mails))
	for _, mail := range mails {
		resources = append(resources, scopes.Resource{Mail: mail, Kind: scopes.KindRoom})
	}
	return &scopes.Scope{GroupID: groupID, Resources: resources}
}

func TestMemoryCachePutGet(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(clock)

	scope := testScope("group-1", "room-a@example.com")
	require.NoError(t, c.Put(ctx, "token-1", scope, time.Minute))

	got, err := c.Get(ctx, "token-1")
	require.NoError(t, err)
	require.Equal(t, scope, got)

	_, err = c.Get(ctx, "token-2")
	require.True(t, trace.IsNotFound(err))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(clock)

	require.NoError(t, c.Put(ctx, "token-1", testScope("group-1", "room-a@example.com"), time.Minute))

	clock.Advance(59 * time.Second)
	_, err := c.Get(ctx, "token-1")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = c.Get(ctx, "token-1")
	require.True(t, trace.IsNotFound(err))
}

func TestMemoryCachePutOverwrites(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(clock)

	require.NoError(t, c.Put(ctx, "token-1", testScope("group-1", "room-a@example.com"), time.Minute))
	fresh := testScope("group-1", "room-b@example.com")
	require.NoError(t, c.Put(ctx, "token-1", fresh, time.Minute))

	got, err := c.Get(ctx, "token-1")
	require.NoError(t, err)
	require.Equal(t, fresh, got)
}

func TestMemoryCacheRemove(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(clockwork.NewFakeClock())

	require.NoError(t, c.Put(ctx, "token-1", testScope("group-1", "room-a@example.com"), time.Minute))
	require.NoError(t, c.Remove(ctx, "token-1"))
	_, err := c.Get(ctx, "token-1")
	require.True(t, trace.IsNotFound(err))

	// Removing an absent entry is not an error.
	require.NoError(t, c.Remove(ctx, "token-1"))
	require.NoError(t, c.Remove(ctx, "never-existed"))
}

func TestMemoryCacheRemoveByGroup(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(clockwork.NewFakeClock())

	require.NoError(t, c.Put(ctx, "token-1", testScope("group-1", "room-a@example.com"), time.Minute))
	require.NoError(t, c.Put(ctx, "token-2", testScope("group-1", "room-b@example.com"), time.Minute))
	require.NoError(t, c.Put(ctx, "token-3", testScope("group-2", "room-c@example.com"), time.Minute))

	removed, err := c.RemoveByGroup(ctx, "group-1")
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = c.Get(ctx, "token-1")
	require.True(t, trace.IsNotFound(err))
	_, err = c.Get(ctx, "token-2")
	require.True(t, trace.IsNotFound(err))

	// The other group is untouched.
	_, err = c.Get(ctx, "token-3")
	require.NoError(t, err)

	// Invalidating an empty group is a no-op.
	removed, err = c.RemoveByGroup(ctx, "group-1")
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestMemoryCacheConcurrency(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokenID := fmt.Sprintf("token-%d", i)
			groupID := fmt.Sprintf("group-%d", i%4)
			for j := 0; j < 100; j++ {
				_ = c.Put(ctx, tokenID, testScope(groupID, "room@example.com"), time.Minute)
				_, _ = c.Get(ctx, tokenID)
				if j%10 == 0 {
					_, _ = c.RemoveByGroup(ctx, groupID)
				}
			}
		}(i)
	}
	wg.Wait()
}
