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

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/graphscope/lib/msgraph"
	"github.com/gravitational/graphscope/lib/scopes"
	"github.com/gravitational/graphscope/lib/scopes/cache"
	"github.com/gravitational/graphscope/lib/tokens"
)

type fakeGraph struct {
	members    []*msgraph.DirectoryMember
	membersErr error
}

func (f *fakeGraph) IterateGroupMembers(ctx context.Context, groupID string, fn func(*msgraph.DirectoryMember) bool) error {
	if f.membersErr != nil {
		return f.membersErr
	}
	for _, m := range f.members {
		if !fn(m) {
			return nil
		}
	}
	return nil
}

func (f *fakeGraph) ListPlaces(ctx context.Context, placeType string) ([]*msgraph.Place, error) {
	return nil, nil
}

type testPack struct {
	server *Server
	cache  cache.Cache
	tokens *tokens.Service
	graph  *fakeGraph
	clock  *clockwork.FakeClock
}

func newTestPack(t *testing.T) *testPack {
	t.Helper()
	clock := clockwork.NewFakeClock()
	graph := &fakeGraph{members: []*msgraph.DirectoryMember{
		{ID: "id-room-a", Mail: "room-a@example.com", DisplayName: "Conference Room A"},
	}}

	builder, err := scopes.NewBuilder(scopes.BuilderConfig{
		Graph:        graph,
		AllowedKinds: []scopes.Kind{scopes.KindRoom},
		Clock:        clock,
	})
	require.NoError(t, err)

	tokenService, err := tokens.NewService(tokens.Config{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "graphscope",
		Audience:   "graphscope-clients",
		TTL:        15 * time.Minute,
		Clock:      clock,
	})
	require.NoError(t, err)

	scopeCache := cache.NewMemoryCache(clock)
	server, err := NewServer(Config{
		APIKeys:  map[string][]string{"key-1": {"group-1"}},
		Builder:  builder,
		Cache:    scopeCache,
		Tokens:   tokenService,
		ScopeTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	return &testPack{
		server: server,
		cache:  scopeCache,
		tokens: tokenService,
		graph:  graph,
		clock:  clock,
	}
}

func TestLoginEstablishesSession(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)

	result, err := pack.server.Login(ctx, "key-1", "group-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.ResourceCount)

	session, err := pack.server.ValidateSession(ctx, result.Token)
	require.NoError(t, err)
	require.Equal(t, "group-1", session.Claims.GroupID)
	require.True(t, session.Scope.Contains("room-a@example.com"))
}

func TestLoginSubjectNeverCarriesAPIKey(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)

	result, err := pack.server.Login(ctx, "key-1", "group-1")
	require.NoError(t, err)

	session, err := pack.server.ValidateSession(ctx, result.Token)
	require.NoError(t, err)
	require.NotContains(t, session.Claims.Subject, "key-1")
	require.NotEmpty(t, session.Claims.Subject)
}

func TestLoginRejectsUnknownKeyAndUnboundGroup(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)

	_, err := pack.server.Login(ctx, "key-404", "group-1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = pack.server.Login(ctx, "key-1", "group-else")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginBuildFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)
	pack.graph.membersErr = errors.New("enumeration failed")

	_, err := pack.server.Login(ctx, "key-1", "group-1")
	require.Error(t, err)
}

func TestLogoutDropsScope(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)

	result, err := pack.server.Login(ctx, "key-1", "group-1")
	require.NoError(t, err)
	require.NoError(t, pack.server.Logout(ctx, result.Token))

	_, err = pack.server.ValidateSession(ctx, result.Token)
	require.ErrorIs(t, err, tokens.ErrRevoked)
}

func TestValidateSessionScopeMissing(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)

	result, err := pack.server.Login(ctx, "key-1", "group-1")
	require.NoError(t, err)

	removed, err := pack.server.InvalidateGroup(ctx, "group-1")
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = pack.server.ValidateSession(ctx, result.Token)
	require.ErrorIs(t, err, tokens.ErrScopeMissing)
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	pack := newTestPack(t)

	first, err := pack.server.Login(ctx, "key-1", "group-1")
	require.NoError(t, err)

	second, err := pack.server.Refresh(ctx, first.Token)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = pack.server.ValidateSession(ctx, second.Token)
	require.NoError(t, err)
	_, err = pack.server.ValidateSession(ctx, first.Token)
	require.ErrorIs(t, err, tokens.ErrRevoked)
}
