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

// Package scopes materializes per-token resource scopes from upstream group
// membership: it classifies directory members into bookable resources and
// assembles them into immutable, TTL-bound scopes.
package scopes

import "strings"

// Kind is the classified type of a resource. Values match the place type
// names accepted in configuration.
type Kind string

const (
	KindRoom      Kind = "room"
	KindWorkspace Kind = "workspace"
	KindEquipment Kind = "equipment"
	KindGeneric   Kind = "generic"
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindRoom:
		return KindRoom, true
	case KindWorkspace:
		return KindWorkspace, true
	case KindEquipment:
		return KindEquipment, true
	case KindGeneric:
		return KindGeneric, true
	}
	return "", false
}

// Resource is a single admissible proxy target. ID and Mail both identify
// it; at least one is non-empty. Mail is stored lowercase.
type Resource struct {
	ID          string `json:"id,omitempty"`
	Mail        string `json:"mail,omitempty"`
	Kind        Kind   `json:"kind"`
	DisplayName string `json:"display_name,omitempty"`
	// Capacity is advisory; 0 means unknown.
	Capacity int `json:"capacity,omitempty"`
	// Location is advisory and never used for access decisions.
	Location string `json:"location,omitempty"`
}

// Matches reports whether identifier refers to this resource by ID or mail,
// compared case-insensitively.
func (r *Resource) Matches(identifier string) bool {
	if identifier == "" {
		return false
	}
	if r.ID != "" && strings.EqualFold(r.ID, identifier) {
		return true
	}
	return r.Mail != "" && strings.EqualFold(r.Mail, identifier)
}
