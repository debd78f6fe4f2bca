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

// Package defaults contains default constants shared across graphscope
// packages.
package defaults

import "time"

const (
	// HTTPListenAddr is the address the API server binds to unless
	// configured otherwise.
	HTTPListenAddr = "0.0.0.0:8088"

	// GraphBaseURL is the Microsoft Graph endpoint proxied upstream.
	GraphBaseURL = "https://graph.microsoft.com"

	// GraphScope is the OAuth2 scope requested for upstream app tokens.
	GraphScope = "https://graph.microsoft.com/.default"

	// TokenTTL is the lifetime of issued bearer tokens.
	TokenTTL = 15 * time.Minute

	// ScopeCacheTTL is the lifetime of materialized scopes. It matches
	// TokenTTL so a token never outlives the scope it references.
	ScopeCacheTTL = 15 * time.Minute

	// ClockSkew is the tolerance applied to token time claims.
	ClockSkew = 2 * time.Minute

	// MaxScopeSize caps the number of resources admitted into one scope.
	MaxScopeSize = 500

	// MemberPageSize is the page size used when enumerating group members
	// upstream.
	MemberPageSize = 100

	// UpstreamRequestTimeout bounds a single proxied upstream call.
	UpstreamRequestTimeout = 30 * time.Second

	// HealthProbeTimeout bounds the upstream reachability probe.
	HealthProbeTimeout = 5 * time.Second

	// ShutdownTimeout is how long graceful shutdown waits for in-flight
	// requests to drain.
	ShutdownTimeout = 10 * time.Second

	// RevocationSweepInterval is how often the revocation set drops
	// entries whose tokens have expired on their own.
	RevocationSweepInterval = time.Minute

	// FilterMaxBodyBytes bounds how much of an upstream response the
	// filter will buffer before giving up and streaming it through.
	FilterMaxBodyBytes = 16 << 20 // 16 MiB
)

const (
	// MinSigningKeyBytes is the minimum accepted JWT signing key length.
	MinSigningKeyBytes = 32

	// TokenIDBytes is the entropy, in bytes, of generated token IDs.
	TokenIDBytes = 16
)
