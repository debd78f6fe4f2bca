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

package scopes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/graphscope/lib/msgraph"
)

type fakeGraph struct {
	members    []*msgraph.DirectoryMember
	places     map[string][]*msgraph.Place
	membersErr error
	placesErr  error
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
	if f.placesErr != nil {
		return nil, f.placesErr
	}
	return f.places[placeType], nil
}

func newTestBuilder(t *testing.T, graph GraphClient, opts ...func(*BuilderConfig)) *Builder {
	t.Helper()
	cfg := BuilderConfig{
		Graph:        graph,
		AllowedKinds: []Kind{KindRoom, KindWorkspace},
		TTL:          15 * time.Minute,
		Clock:        clockwork.NewFakeClock(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	builder, err := NewBuilder(cfg)
	require.NoError(t, err)
	return builder
}

func TestBuildClassifiesAndAdmits(t *testing.T) {
	graph := &fakeGraph{members: []*msgraph.DirectoryMember{
		{ID: "id-1", Mail: "room-a@example.com", DisplayName: "Conference Room A (Cap: 10)"},
		{ID: "id-2", Mail: "desk12@example.com", DisplayName: "Hot Desk 12"},
		{ID: "id-3", Mail: "cart@example.com", DisplayName: "Projector Cart"},
		{ID: "id-4", Mail: "", DisplayName: "No Mailbox"},
	}}
	builder := newTestBuilder(t, graph)

	scope, err := builder.Build(context.Background(), "group-1")
	require.NoError(t, err)
	require.Equal(t, "group-1", scope.GroupID)
	// Equipment and mailbox-less members are not admitted.
	require.Len(t, scope.Resources, 2)
	require.Equal(t, "room-a@example.com", scope.Resources[0].Mail)
	require.Equal(t, KindRoom, scope.Resources[0].Kind)
	require.Equal(t, 10, scope.Resources[0].Capacity)
	require.Equal(t, "desk12@example.com", scope.Resources[1].Mail)
	require.Equal(t, KindWorkspace, scope.Resources[1].Kind)
	require.Equal(t, scope.CreatedAt.Add(15*time.Minute), scope.ExpiresAt)
}

func TestBuildFallsBackViaUserPrincipalName(t *testing.T) {
	graph := &fakeGraph{members: []*msgraph.DirectoryMember{
		{ID: "id-1", UserPrincipalName: "Room-B@Example.com", DisplayName: "Meeting Room B"},
	}}
	builder := newTestBuilder(t, graph)

	scope, err := builder.Build(context.Background(), "group-1")
	require.NoError(t, err)
	require.Len(t, scope.Resources, 1)
	require.Equal(t, "room-b@example.com", scope.Resources[0].Mail)
}

func TestBuildDeduplicates(t *testing.T) {
	graph := &fakeGraph{members: []*msgraph.DirectoryMember{
		{ID: "id-1", Mail: "room-a@example.com", DisplayName: "Conference Room A"},
		{ID: "id-1", Mail: "room-a@example.com", DisplayName: "Conference Room A (duplicate)"},
		{ID: "id-2", Mail: "ROOM-A@example.com", DisplayName: "Conference Room A (alias)"},
	}}
	builder := newTestBuilder(t, graph)

	scope, err := builder.Build(context.Background(), "group-1")
	require.NoError(t, err)
	require.Len(t, scope.Resources, 1)
	// First occurrence wins.
	require.Equal(t, "Conference Room A", scope.Resources[0].DisplayName)
}

func TestBuildEmptyScope(t *testing.T) {
	builder := newTestBuilder(t, &fakeGraph{})
	_, err := builder.Build(context.Background(), "group-1")
	require.ErrorIs(t, err, ErrEmptyScope)

	// Members that all fail admission also produce an empty scope.
	graph := &fakeGraph{members: []*msgraph.DirectoryMember{
		{ID: "id-1", Mail: "cart@example.com", DisplayName: "Projector Cart"},
	}}
	builder = newTestBuilder(t, graph)
	_, err = builder.Build(context.Background(), "group-1")
	require.ErrorIs(t, err, ErrEmptyScope)
}

func TestBuildEnumerationFailure(t *testing.T) {
	boom := errors.New("enumeration failed")
	builder := newTestBuilder(t, &fakeGraph{membersErr: boom})
	scope, err := builder.Build(context.Background(), "group-1")
	require.ErrorIs(t, err, boom)
	require.Nil(t, scope)
}

func TestBuildTruncatesOversizedScope(t *testing.T) {
	graph := &fakeGraph{members: []*msgraph.DirectoryMember{
		{ID: "id-1", Mail: "room-1@example.com", DisplayName: "Room 1"},
		{ID: "id-2", Mail: "room-2@example.com", DisplayName: "Room 2"},
		{ID: "id-3", Mail: "room-3@example.com", DisplayName: "Room 3"},
	}}
	builder := newTestBuilder(t, graph, func(cfg *BuilderConfig) {
		cfg.MaxScopeSize = 2
	})

	scope, err := builder.Build(context.Background(), "group-1")
	require.NoError(t, err)
	require.Len(t, scope.Resources, 2)
	require.Equal(t, "room-1@example.com", scope.Resources[0].Mail)
	require.Equal(t, "room-2@example.com", scope.Resources[1].Mail)
}

func TestBuildSupplementsFromPlaces(t *testing.T) {
	capacity := 8
	graph := &fakeGraph{
		members: []*msgraph.DirectoryMember{
			{ID: "id-1", Mail: "room-a@example.com", DisplayName: "Conference Room A"},
			{ID: "id-2", Mail: "room-b@example.com", DisplayName: "Conference Room B (Cap: 4)"},
		},
		places: map[string][]*msgraph.Place{
			"microsoft.graph.room": {
				{EmailAddress: "Room-A@example.com", Capacity: &capacity, Building: "HQ", FloorLabel: "2"},
				{EmailAddress: "unrelated@example.com", Capacity: &capacity},
			},
		},
	}
	builder := newTestBuilder(t, graph, func(cfg *BuilderConfig) {
		cfg.UsePlacesAPI = true
	})

	scope, err := builder.Build(context.Background(), "group-1")
	require.NoError(t, err)
	// Supplementation fills gaps but never adds or removes resources.
	require.Len(t, scope.Resources, 2)
	require.Equal(t, 8, scope.Resources[0].Capacity)
	require.Equal(t, "HQ, 2", scope.Resources[0].Location)
	// Values parsed from the display name are kept.
	require.Equal(t, 4, scope.Resources[1].Capacity)
}

func TestBuildSurvivesPlacesFailure(t *testing.T) {
	graph := &fakeGraph{
		members: []*msgraph.DirectoryMember{
			{ID: "id-1", Mail: "room-a@example.com", DisplayName: "Conference Room A"},
		},
		placesErr: errors.New("places unavailable"),
	}
	builder := newTestBuilder(t, graph, func(cfg *BuilderConfig) {
		cfg.UsePlacesAPI = true
	})

	scope, err := builder.Build(context.Background(), "group-1")
	require.NoError(t, err)
	require.Len(t, scope.Resources, 1)
}
