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
	"time"
)

// Scope is the materialized permission list backing one token. A scope is
// immutable after construction; refreshing membership produces a new scope.
type Scope struct {
	GroupID   string     `json:"group_id"`
	Resources []Resource `json:"resources"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Contains reports whether identifier names a resource in this scope, by ID
// or mail, compared case-insensitively.
func (s *Scope) Contains(identifier string) bool {
	for i := range s.Resources {
		if s.Resources[i].Matches(identifier) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of the identifiers names a resource in
// this scope.
func (s *Scope) ContainsAny(identifiers []string) bool {
	for _, id := range identifiers {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// Expired reports whether the scope has passed its expiry at time now.
func (s *Scope) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
