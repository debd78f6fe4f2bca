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
	"regexp"
	"strconv"
	"strings"
)

// Keyword tables scanned, in priority order, over the concatenation of
// display name and mail. First hit wins.
var (
	equipmentKeywords = []string{"equipment", "projector", "device", "camera", "tv", "screen"}
	roomKeywords      = []string{"room", "meeting", "conference", "boardroom", "meetingroom"}
	workspaceKeywords = []string{"workspace", "desk", "office", "workstation"}
)

// Capacity patterns, first match wins.
var capacityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcap:?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bcapacity:?\s*(\d+)`),
	regexp.MustCompile(`(?i)\b(\d+)\s*people?\b`),
	regexp.MustCompile(`(?i)\b(\d+)[-\s]*person\b`),
	regexp.MustCompile(`(?i)\bseats?[-\s]*(\d+)\b`),
	regexp.MustCompile(`(?i)\b(\d+)[-\s]*seat`),
}

// Location patterns, first match wins. The captured substring keeps its
// original case.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(([^)]+)\)\s*$`),
	regexp.MustCompile(`-\s*([^-]+?)\s*$`),
	regexp.MustCompile(`(?i)\broom\s+(\S+)`),
	regexp.MustCompile(`(?i)\bbuilding\s+(\S+)`),
	regexp.MustCompile(`(?i)\bfloor\s+(\S+)`),
	regexp.MustCompile(`(?i)\blevel\s+(\S+)`),
	regexp.MustCompile(`(?i)(\S+)\s+building\b`),
	regexp.MustCompile(`(?i)(\d+(?:st|nd|rd|th)\s+floor\b.*)`),
}

// looksLikeCapacity reports whether s is a capacity annotation rather than a
// location, e.g. the "Cap: 10" inside "Conference Room A (Cap: 10)".
func looksLikeCapacity(s string) bool {
	for _, re := range capacityPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Classifier turns directory member records into typed resources. It is
// stateless and safe for concurrent use.
type Classifier struct {
	// AllowGeneric controls the fallback for members that match no keyword
	// table: when false they are assumed to be rooms, the historical
	// default; when true they keep the generic kind.
	AllowGeneric bool
}

// Classify produces the resource for one directory member, or false when
// the record is not classifiable. It never fails on malformed input and is
// deterministic: the same input always yields the same output.
func (c Classifier) Classify(id, mail, displayName string) (Resource, bool) {
	mail = strings.ToLower(strings.TrimSpace(mail))
	if mail == "" {
		return Resource{}, false
	}

	haystack := strings.ToLower(displayName + " " + mail)
	kind := KindGeneric
	switch {
	case containsAny(haystack, equipmentKeywords):
		kind = KindEquipment
	case containsAny(haystack, roomKeywords):
		kind = KindRoom
	case containsAny(haystack, workspaceKeywords):
		kind = KindWorkspace
	}
	if kind == KindGeneric && !c.AllowGeneric {
		kind = KindRoom
	}

	return Resource{
		ID:          id,
		Mail:        mail,
		Kind:        kind,
		DisplayName: strings.TrimSpace(displayName),
		Capacity:    extractCapacity(displayName),
		Location:    extractLocation(displayName),
	}, true
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// extractCapacity pulls a seat count out of a display name, 0 when absent.
func extractCapacity(displayName string) int {
	for _, re := range capacityPatterns {
		m := re.FindStringSubmatch(displayName)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// extractLocation pulls a location hint out of a display name, "" when
// absent. A trailing annotation that is really a capacity marker is not a
// location.
func extractLocation(displayName string) string {
	for _, re := range locationPatterns {
		m := re.FindStringSubmatch(displayName)
		if m == nil {
			continue
		}
		loc := strings.TrimSpace(m[1])
		if loc == "" || looksLikeCapacity(loc) {
			continue
		}
		return loc
	}
	return ""
}
