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

// Package authz decides, from an upstream URL path, whether a request is
// admitted by the caller's scope, denied, or forwarded with response
// filtering. Decisions are pure functions of the path and the scope.
package authz

import (
	"net/url"
	"strings"

	"github.com/gravitational/graphscope/lib/scopes"
)

// Action is the outcome of an authorization decision.
type Action int

const (
	// ActionAllow forwards the request untouched.
	ActionAllow Action = iota
	// ActionDeny rejects the request; the target is out of scope.
	ActionDeny
	// ActionFilterCollection forwards the request and filters the
	// response body against the scope.
	ActionFilterCollection
)

// Decision is the result of inspecting one request path.
type Decision struct {
	Action Action
	// Resource is the identifier under test, set for Allow-by-match and
	// Deny outcomes.
	Resource string
}

// Segments whose presence as the final path element marks a collection
// endpoint subject to response filtering.
var collectionSuffixes = map[string]bool{
	"rooms":     true,
	"places":    true,
	"calendars": true,
}

// Decide computes the authorization outcome for a request. path is the
// upstream URL path with the version segment already stripped; method is
// accepted for interface completeness, the URL surface alone determines the
// outcome. Paths that address no modeled resource are allowed through: the
// proxy is transparent for out-of-model endpoints.
func Decide(method, path string, scope *scopes.Scope) Decision {
	segs := split(path)
	if len(segs) == 0 {
		return Decision{Action: ActionAllow}
	}

	head := strings.ToLower(segs[0])

	// users/{X}/** — X is the resource under test regardless of what
	// follows, including collection-shaped tails like .../calendars:
	// listing calendars of an in-scope mailbox is admitted wholesale.
	if head == "users" && len(segs) >= 2 {
		return decideResource(segs[1], scope)
	}

	// calendars/{X}/** — X is the resource under test.
	if head == "calendars" && len(segs) >= 2 {
		return decideResource(segs[1], scope)
	}

	// The places catalogue is always a collection listing, including its
	// typed form places/microsoft.graph.room.
	if head == "places" {
		return Decision{Action: ActionFilterCollection}
	}

	// Bare collection endpoints: /rooms, /places, anything ending in
	// /calendars with no trailing id.
	if collectionSuffixes[strings.ToLower(segs[len(segs)-1])] {
		return Decision{Action: ActionFilterCollection}
	}

	return Decision{Action: ActionAllow}
}

func decideResource(rawSegment string, scope *scopes.Scope) Decision {
	identifier := decodeSegment(rawSegment)
	if scope != nil && scope.Contains(identifier) {
		return Decision{Action: ActionAllow, Resource: identifier}
	}
	return Decision{Action: ActionDeny, Resource: identifier}
}

// split breaks a path into its non-empty segments.
func split(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// decodeSegment percent-decodes one path segment. No further decoding is
// applied; resource matching is a verbatim case-insensitive compare.
func decodeSegment(seg string) string {
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return seg
	}
	return decoded
}
