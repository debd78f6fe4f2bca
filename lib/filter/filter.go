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

// Package filter rewrites upstream JSON collection bodies so they contain
// only items admitted by the caller's scope. Filtering is a pure function
// of the body and the scope; it never errors, and bodies it cannot parse
// pass through unchanged.
package filter

import (
	"encoding/json"

	"github.com/gravitational/graphscope/lib/scopes"
)

// Apply rewrites body against scope. For a paginated collection, the
// "value" array is replaced with its in-scope subset in original order and
// every other top-level property, @odata.nextLink included, is carried
// over. A single out-of-scope object becomes an empty object. Non-JSON
// bodies are returned as-is.
func Apply(body []byte, scope *scopes.Scope) []byte {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return body
	}

	rawValue, ok := top["value"]
	if !ok {
		return filterSingle(body, top, scope)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawValue, &items); err != nil {
		// A "value" property that is not an array is not a collection
		// page; treat the body as a single object.
		return filterSingle(body, top, scope)
	}

	kept := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if inScope(item, scope) {
			kept = append(kept, item)
		}
	}

	filteredValue, err := json.Marshal(kept)
	if err != nil {
		return body
	}
	top["value"] = filteredValue
	out, err := json.Marshal(top)
	if err != nil {
		return body
	}
	return out
}

func filterSingle(body []byte, top map[string]json.RawMessage, scope *scopes.Scope) []byte {
	raw, err := json.Marshal(top)
	if err != nil {
		return body
	}
	if inScope(raw, scope) {
		return body
	}
	return []byte("{}")
}

// inScope reports whether a JSON object carries at least one identifier
// matching a scope resource. Candidate identifiers are checked in a fixed
// order: id, emailAddress.address, mail, userPrincipalName.
func inScope(item json.RawMessage, scope *scopes.Scope) bool {
	if scope == nil {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return false
	}
	for _, identifier := range []string{
		stringField(obj, "id"),
		emailAddressField(obj),
		stringField(obj, "mail"),
		stringField(obj, "userPrincipalName"),
	} {
		if identifier != "" && scope.Contains(identifier) {
			return true
		}
	}
	return false
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// emailAddressField handles both shapes Graph uses: the nested
// {"address": "..."} object of event payloads and the bare string of the
// places catalogue.
func emailAddressField(obj map[string]json.RawMessage) string {
	raw, ok := obj["emailAddress"]
	if !ok {
		return ""
	}
	var nested struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Address != "" {
		return nested.Address
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
