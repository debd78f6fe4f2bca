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

package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/graphscope/lib/scopes"
)

func testScope() *scopes.Scope {
	return &scopes.Scope{
		GroupID: "group-1",
		Resources: []scopes.Resource{
			{ID: "id-room-a", Mail: "room-a@example.com", Kind: scopes.KindRoom},
			{Mail: "desk12@example.com", Kind: scopes.KindWorkspace},
		},
	}
}

type page struct {
	NextLink string            `json:"@odata.nextLink,omitempty"`
	Count    *int              `json:"@odata.count,omitempty"`
	Value    []json.RawMessage `json:"value"`
}

func decodePage(t *testing.T, body []byte) page {
	t.Helper()
	var p page
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func TestApplyFiltersCollection(t *testing.T) {
	body := []byte(`{
		"@odata.nextLink": "https://upstream.example.com/v1.0/rooms?$skip=3",
		"value": [
			{"id": "id-room-a", "displayName": "Conference Room A"},
			{"id": "id-room-z", "displayName": "Not Yours"},
			{"emailAddress": "desk12@example.com", "displayName": "Hot Desk 12"}
		]
	}`)
	out := Apply(body, testScope())
	p := decodePage(t, out)
	// In-scope subset in original order.
	require.Len(t, p.Value, 2)
	require.Contains(t, string(p.Value[0]), "id-room-a")
	require.Contains(t, string(p.Value[1]), "desk12@example.com")
	// Pagination links survive filtering.
	require.Equal(t, "https://upstream.example.com/v1.0/rooms?$skip=3", p.NextLink)
}

func TestApplyMatchesIdentifierForms(t *testing.T) {
	tests := []struct {
		name string
		item string
		want bool
	}{
		{"by id", `{"id": "id-room-a"}`, true},
		{"by mail", `{"mail": "room-a@example.com"}`, true},
		{"by userPrincipalName", `{"userPrincipalName": "desk12@example.com"}`, true},
		{"by bare emailAddress string", `{"emailAddress": "room-a@example.com"}`, true},
		{"by nested emailAddress object", `{"emailAddress": {"name": "Room A", "address": "room-a@example.com"}}`, true},
		{"case-insensitive", `{"mail": "ROOM-A@EXAMPLE.COM"}`, true},
		{"unknown item", `{"id": "stranger"}`, false},
		{"no identifiers", `{"displayName": "anonymous"}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(`{"value": [` + tc.item + `]}`)
			p := decodePage(t, Apply(body, testScope()))
			if tc.want {
				require.Len(t, p.Value, 1)
			} else {
				require.Empty(t, p.Value)
			}
		})
	}
}

func TestApplyEmptyResult(t *testing.T) {
	body := []byte(`{"value": [{"id": "a"}, {"id": "b"}]}`)
	p := decodePage(t, Apply(body, testScope()))
	require.NotNil(t, p.Value)
	require.Empty(t, p.Value)
}

func TestApplyIdempotent(t *testing.T) {
	body := []byte(`{
		"@odata.count": 3,
		"value": [
			{"id": "id-room-a"},
			{"id": "id-room-z"},
			{"mail": "desk12@example.com"}
		]
	}`)
	scope := testScope()
	once := Apply(body, scope)
	twice := Apply(once, scope)
	require.JSONEq(t, string(once), string(twice))
}

func TestApplySingleObject(t *testing.T) {
	scope := testScope()

	inScope := []byte(`{"id": "id-room-a", "displayName": "Conference Room A"}`)
	require.Equal(t, inScope, Apply(inScope, scope))

	outOfScope := []byte(`{"id": "id-room-z", "displayName": "Not Yours"}`)
	require.JSONEq(t, `{}`, string(Apply(outOfScope, scope)))
}

func TestApplyNonCollectionValueProperty(t *testing.T) {
	// A scalar "value" is not a collection page; the object is judged as a
	// whole.
	body := []byte(`{"id": "id-room-a", "value": 42}`)
	require.Equal(t, body, Apply(body, testScope()))
}

func TestApplyUnparsableBodyPassesThrough(t *testing.T) {
	for _, body := range [][]byte{
		[]byte(`not json at all`),
		[]byte(`[1, 2, 3]`),
		[]byte(``),
	} {
		require.Equal(t, body, Apply(body, testScope()))
	}
}

func TestApplyNilScopeKeepsNothing(t *testing.T) {
	body := []byte(`{"value": [{"id": "id-room-a"}]}`)
	p := decodePage(t, Apply(body, nil))
	require.Empty(t, p.Value)
}
