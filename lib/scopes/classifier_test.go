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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name         string
		mail         string
		displayName  string
		allowGeneric bool
		wantKind     Kind
	}{
		{
			name:        "conference room by display name",
			mail:        "room-a@example.com",
			displayName: "Conference Room A",
			wantKind:    KindRoom,
		},
		{
			name:        "boardroom keyword",
			mail:        "board@example.com",
			displayName: "Executive Boardroom",
			wantKind:    KindRoom,
		},
		{
			name:        "workspace by desk keyword",
			mail:        "desk12@example.com",
			displayName: "Hot Desk 12",
			wantKind:    KindWorkspace,
		},
		{
			name:        "equipment by projector keyword",
			mail:        "cart2@example.com",
			displayName: "Projector Cart 2",
			wantKind:    KindEquipment,
		},
		{
			name:        "equipment wins over room",
			mail:        "avroom@example.com",
			displayName: "Camera Room",
			wantKind:    KindEquipment,
		},
		{
			name:        "keyword from mail when display name is empty",
			mail:        "room1@example.com",
			displayName: "",
			wantKind:    KindRoom,
		},
		{
			name:        "unclassifiable falls back to room",
			mail:        "thing@example.com",
			displayName: "Thing 1",
			wantKind:    KindRoom,
		},
		{
			name:         "unclassifiable stays generic when allowed",
			mail:         "thing@example.com",
			displayName:  "Thing 1",
			allowGeneric: true,
			wantKind:     KindGeneric,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Classifier{AllowGeneric: tc.allowGeneric}
			resource, ok := c.Classify("id", tc.mail, tc.displayName)
			require.True(t, ok)
			require.Equal(t, tc.wantKind, resource.Kind)
		})
	}
}

func TestClassifyRejectsMissingMail(t *testing.T) {
	c := Classifier{}
	_, ok := c.Classify("id", "", "Conference Room A")
	require.False(t, ok)
	_, ok = c.Classify("id", "   ", "Conference Room A")
	require.False(t, ok)
}

func TestClassifyNormalizesMail(t *testing.T) {
	c := Classifier{}
	resource, ok := c.Classify("id", "  Room-A@Example.COM ", "Conference Room A")
	require.True(t, ok)
	require.Equal(t, "room-a@example.com", resource.Mail)
}

func TestClassifyCapacity(t *testing.T) {
	tests := []struct {
		displayName  string
		wantCapacity int
	}{
		{"Conference Room A (Cap: 10)", 10},
		{"Board Room (Capacity: 8)", 8},
		{"12-person Meeting Room", 12},
		{"Meeting Room for 6 people", 6},
		{"Room seats 4", 4},
		{"Conference Room A", 0},
	}
	for _, tc := range tests {
		t.Run(tc.displayName, func(t *testing.T) {
			c := Classifier{}
			resource, ok := c.Classify("id", "r@example.com", tc.displayName)
			require.True(t, ok)
			require.Equal(t, tc.wantCapacity, resource.Capacity)
		})
	}
}

func TestClassifyLocation(t *testing.T) {
	tests := []struct {
		name         string
		displayName  string
		wantLocation string
	}{
		{
			name:         "trailing parenthetical",
			displayName:  "Hot Desk 12 (Building B)",
			wantLocation: "Building B",
		},
		{
			name:         "trailing dash segment",
			displayName:  "Quiet Office - 3rd Floor",
			wantLocation: "3rd Floor",
		},
		{
			name:         "capacity annotation is not a location",
			displayName:  "Huddle Space (Cap: 4)",
			wantLocation: "",
		},
		{
			name:         "no hint",
			displayName:  "Hot Desk 12",
			wantLocation: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Classifier{}
			resource, ok := c.Classify("id", "r@example.com", tc.displayName)
			require.True(t, ok)
			require.Equal(t, tc.wantLocation, resource.Location)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := Classifier{}
	first, ok := c.Classify("id-1", "Room-A@Example.com", "Conference Room A (Cap: 10)")
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := c.Classify("id-1", "Room-A@Example.com", "Conference Room A (Cap: 10)")
		require.True(t, ok)
		require.Equal(t, first, again)
	}
}
