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

// Package auth orchestrates the session lifecycle: exchanging API keys for
// bearer tokens backed by materialized scopes, refreshing and revoking
// them, and resolving live sessions for protected calls.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/graphscope/lib/defaults"
	"github.com/gravitational/graphscope/lib/scopes"
	"github.com/gravitational/graphscope/lib/scopes/cache"
	"github.com/gravitational/graphscope/lib/tokens"
)

// ErrInvalidCredentials is returned when the API key is unknown or not
// bound to the requested group.
var ErrInvalidCredentials = errors.New("invalid API key or group binding")

// Config configures the auth server.
type Config struct {
	// APIKeys maps each API key to the group IDs it may log into.
	// Read-only at runtime. Required.
	APIKeys map[string][]string
	// Builder materializes scopes from group membership. Required.
	Builder *scopes.Builder
	// Cache stores materialized scopes by token ID. Required.
	Cache cache.Cache
	// Tokens mints and validates bearer tokens. Required.
	Tokens *tokens.Service
	// ScopeTTL is the cache lifetime of materialized scopes. Defaults to
	// defaults.ScopeCacheTTL.
	ScopeTTL time.Duration
	// Log emits session lifecycle diagnostics.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (cfg *Config) CheckAndSetDefaults() error {
	if len(cfg.APIKeys) == 0 {
		return trace.BadParameter("missing parameter APIKeys")
	}
	if cfg.Builder == nil {
		return trace.BadParameter("missing parameter Builder")
	}
	if cfg.Cache == nil {
		return trace.BadParameter("missing parameter Cache")
	}
	if cfg.Tokens == nil {
		return trace.BadParameter("missing parameter Tokens")
	}
	if cfg.ScopeTTL <= 0 {
		cfg.ScopeTTL = defaults.ScopeCacheTTL
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default().With("component", "auth")
	}
	return nil
}

// Server implements the session lifecycle.
type Server struct {
	cfg Config
}

// NewServer returns an auth server configured per cfg.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Server{cfg: cfg}, nil
}

// Session is a validated token together with its resolved scope.
type Session struct {
	Claims *tokens.Claims
	Scope  *scopes.Scope
}

// LoginResult is what a successful login or refresh returns to the client.
type LoginResult struct {
	Token         string `json:"token"`
	GroupID       string `json:"groupId"`
	ResourceCount int    `json:"resourceCount"`
	ExpiresIn     int    `json:"expiresIn"`
}

// Login exchanges an API key and group ID for a bearer token. The group's
// membership is enumerated upstream, classified and cached under the new
// token's ID.
func (s *Server) Login(ctx context.Context, apiKey, groupID string) (*LoginResult, error) {
	if apiKey == "" || groupID == "" {
		return nil, trace.BadParameter("apiKey and groupId are required")
	}
	if !s.keyBoundToGroup(apiKey, groupID) {
		return nil, trace.Wrap(ErrInvalidCredentials)
	}
	return s.establish(ctx, subjectHandle(apiKey), groupID)
}

// Refresh mints a new token from a live one with a freshly built scope,
// then revokes the presented token.
func (s *Server) Refresh(ctx context.Context, raw string) (*LoginResult, error) {
	session, err := s.ValidateSession(ctx, raw)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	result, err := s.establish(ctx, session.Claims.Subject, session.Claims.GroupID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if _, err := s.cfg.Tokens.Revoke(raw); err != nil {
		s.cfg.Log.WarnContext(ctx, "failed to revoke refreshed token",
			"token_id", session.Claims.ID, "error", err)
	}
	if err := s.cfg.Cache.Remove(ctx, session.Claims.ID); err != nil {
		s.cfg.Log.WarnContext(ctx, "failed to drop refreshed scope",
			"token_id", session.Claims.ID, "error", err)
	}
	return result, nil
}

// Logout revokes a live token and drops its cached scope. Logging out an
// already-revoked or expired token succeeds.
func (s *Server) Logout(ctx context.Context, raw string) error {
	if _, err := s.cfg.Tokens.Revoke(raw); err != nil {
		return trace.Wrap(err)
	}
	claims, err := s.cfg.Tokens.ParseSigned(raw)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := s.cfg.Cache.Remove(ctx, claims.ID); err != nil {
		s.cfg.Log.WarnContext(ctx, "failed to drop scope on logout",
			"token_id", claims.ID, "error", err)
	}
	return nil
}

// ValidateSession checks a raw bearer token and resolves its scope from
// the cache. A valid token whose scope was evicted fails with
// tokens.ErrScopeMissing; the caller must log in again.
func (s *Server) ValidateSession(ctx context.Context, raw string) (*Session, error) {
	claims, err := s.cfg.Tokens.Validate(raw)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	scope, err := s.cfg.Cache.Get(ctx, claims.ID)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.Wrap(tokens.ErrScopeMissing)
		}
		return nil, trace.Wrap(err)
	}
	return &Session{Claims: claims, Scope: scope}, nil
}

// InvalidateGroup evicts every cached scope built from groupID and returns
// how many were dropped. Tokens referencing them keep a valid signature but
// fail scope resolution until their holders log in again.
func (s *Server) InvalidateGroup(ctx context.Context, groupID string) (int, error) {
	removed, err := s.cfg.Cache.RemoveByGroup(ctx, groupID)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	s.cfg.Log.InfoContext(ctx, "invalidated cached scopes for group",
		"group_id", groupID, "removed", removed)
	return removed, nil
}

// establish builds a fresh scope, mints a token for it and stores the
// scope under the new token ID. Build failures store nothing.
func (s *Server) establish(ctx context.Context, subject, groupID string) (*LoginResult, error) {
	scope, err := s.cfg.Builder.Build(ctx, groupID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	signed, claims, err := s.cfg.Tokens.Mint(subject, groupID, len(scope.Resources))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.cfg.Cache.Put(ctx, claims.ID, scope, s.cfg.ScopeTTL); err != nil {
		return nil, trace.Wrap(err)
	}
	s.cfg.Log.InfoContext(ctx, "session established",
		"subject", subject,
		"group_id", groupID,
		"token_id", claims.ID,
		"resources", len(scope.Resources),
	)
	return &LoginResult{
		Token:         signed,
		GroupID:       groupID,
		ResourceCount: len(scope.Resources),
		ExpiresIn:     int(s.cfg.Tokens.TTL().Seconds()),
	}, nil
}

func (s *Server) keyBoundToGroup(apiKey, groupID string) bool {
	groups, ok := s.cfg.APIKeys[apiKey]
	if !ok {
		return false
	}
	for _, g := range groups {
		if g == groupID {
			return true
		}
	}
	return false
}

// subjectHandle derives the sub claim from an API key without carrying the
// secret itself into tokens or logs.
func subjectHandle(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "key-" + hex.EncodeToString(sum[:4])
}
