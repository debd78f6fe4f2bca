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
	"log/slog"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/defaults"
	"github.com/gravitational/graphscope/lib/msgraph"
)

// ErrEmptyScope is returned when a group yields no admissible resources.
var ErrEmptyScope = errors.New("group produced no admissible resources")

// GraphClient is the upstream surface the builder consumes.
type GraphClient interface {
	// IterateGroupMembers enumerates members of a directory group,
	// exhaustively modulo upstream pagination.
	IterateGroupMembers(ctx context.Context, groupID string, f func(*msgraph.DirectoryMember) bool) error
	// ListPlaces fetches the places catalogue for one place type.
	ListPlaces(ctx context.Context, placeType string) ([]*msgraph.Place, error)
}

// BuilderConfig configures a scope builder.
type BuilderConfig struct {
	// Graph is the upstream client. Required.
	Graph GraphClient
	// AllowedKinds is the set of resource kinds admitted into scopes.
	// Required, non-empty.
	AllowedKinds []Kind
	// AllowGeneric keeps unclassifiable members generic instead of
	// assuming they are rooms.
	AllowGeneric bool
	// MaxScopeSize truncates oversized scopes. Defaults to
	// defaults.MaxScopeSize.
	MaxScopeSize int
	// TTL is the scope lifetime. Defaults to defaults.ScopeCacheTTL.
	TTL time.Duration
	// UsePlacesAPI enriches built scopes from the places catalogue.
	UsePlacesAPI bool
	// Clock is used for scope timestamps.
	Clock clockwork.Clock
	// Log emits build diagnostics.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (cfg *BuilderConfig) CheckAndSetDefaults() error {
	if cfg.Graph == nil {
		return trace.BadParameter("missing parameter Graph")
	}
	if len(cfg.AllowedKinds) == 0 {
		return trace.BadParameter("missing parameter AllowedKinds")
	}
	if cfg.MaxScopeSize <= 0 {
		cfg.MaxScopeSize = defaults.MaxScopeSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.ScopeCacheTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default().With("component", "scopes")
	}
	return nil
}

// Builder materializes scopes from upstream group membership.
type Builder struct {
	cfg        BuilderConfig
	classifier Classifier
	allowed    map[Kind]bool
}

// NewBuilder returns a builder configured per cfg.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	allowed := make(map[Kind]bool, len(cfg.AllowedKinds))
	for _, k := range cfg.AllowedKinds {
		allowed[k] = true
	}
	return &Builder{
		cfg:        cfg,
		classifier: Classifier{AllowGeneric: cfg.AllowGeneric},
		allowed:    allowed,
	}, nil
}

// Build enumerates the group's membership, classifies each member and
// assembles the admissible resources into a new scope. An enumeration error
// fails the whole build; no partial scope is produced.
func (b *Builder) Build(ctx context.Context, groupID string) (*Scope, error) {
	var resources []Resource
	seenID := make(map[string]bool)
	seenMail := make(map[string]bool)

	err := b.cfg.Graph.IterateGroupMembers(ctx, groupID, func(member *msgraph.DirectoryMember) bool {
		mail := member.Mail
		if mail == "" {
			mail = member.UserPrincipalName
		}
		resource, ok := b.classifier.Classify(member.ID, mail, member.DisplayName)
		if !ok || !b.allowed[resource.Kind] {
			return true
		}
		// Deduplicate by ID or mail, keeping the first occurrence.
		id := strings.ToLower(resource.ID)
		if (id != "" && seenID[id]) || seenMail[resource.Mail] {
			return true
		}
		if id != "" {
			seenID[id] = true
		}
		seenMail[resource.Mail] = true
		resources = append(resources, resource)
		return true
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if len(resources) == 0 {
		return nil, trace.Wrap(ErrEmptyScope)
	}

	if len(resources) > b.cfg.MaxScopeSize {
		b.cfg.Log.WarnContext(ctx, "truncating oversized scope",
			"group_id", groupID,
			"resources", len(resources),
			"max_scope_size", b.cfg.MaxScopeSize,
		)
		resources = resources[:b.cfg.MaxScopeSize]
	}

	if b.cfg.UsePlacesAPI {
		// Supplementation failures never fail the build.
		if err := b.supplement(ctx, resources); err != nil {
			b.cfg.Log.WarnContext(ctx, "places supplementation failed",
				"group_id", groupID, "error", err)
		}
	}

	now := b.cfg.Clock.Now().UTC()
	return &Scope{
		GroupID:   groupID,
		Resources: resources,
		CreatedAt: now,
		ExpiresAt: now.Add(b.cfg.TTL),
	}, nil
}

// supplement fills missing display names, capacities and locations from the
// places catalogue. It never adds or removes resources.
func (b *Builder) supplement(ctx context.Context, resources []Resource) error {
	byMail := make(map[string]*msgraph.Place)
	for _, placeType := range []string{"microsoft.graph.room", "microsoft.graph.workspace"} {
		places, err := b.cfg.Graph.ListPlaces(ctx, placeType)
		if err != nil {
			return trace.Wrap(err)
		}
		for _, place := range places {
			mail := strings.ToLower(strings.TrimSpace(place.EmailAddress))
			if mail != "" {
				byMail[mail] = place
			}
		}
	}

	for i := range resources {
		place, ok := byMail[resources[i].Mail]
		if !ok {
			continue
		}
		if resources[i].DisplayName == "" {
			resources[i].DisplayName = place.DisplayName
		}
		if resources[i].Capacity == 0 && place.Capacity != nil {
			resources[i].Capacity = *place.Capacity
		}
		if resources[i].Location == "" {
			resources[i].Location = place.Location()
		}
	}
	return nil
}
