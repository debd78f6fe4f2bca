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

// Package config loads and validates the graphscope file configuration.
package config

import (
	"os"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/gravitational/graphscope/lib/defaults"
	"github.com/gravitational/graphscope/lib/scopes"
)

// FileConfig is the on-disk YAML configuration.
type FileConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// Graph configures the upstream directory connection.
	Graph GraphConfig `yaml:"graph"`

	// JWT configures issued bearer tokens.
	JWT JWTConfig `yaml:"jwt"`

	// Scope configures scope materialization.
	Scope ScopeConfig `yaml:"scope"`

	// Cache configures the scope cache backend.
	Cache CacheConfig `yaml:"cache"`

	// Auth configures caller credentials.
	Auth AuthConfig `yaml:"auth"`
}

// GraphConfig holds the upstream tenant application credentials.
type GraphConfig struct {
	// TenantID is the directory tenant. Required.
	TenantID string `yaml:"tenant_id"`
	// ClientID is the registered application ID. Required.
	ClientID string `yaml:"client_id"`
	// ClientSecret is the application secret. Required; never logged.
	ClientSecret string `yaml:"client_secret"`
	// BaseURL overrides the upstream endpoint, mainly for tests.
	BaseURL string `yaml:"base_url,omitempty"`
}

// JWTConfig configures the token service.
type JWTConfig struct {
	// SigningKey is the HS256 secret, at least 32 bytes. Required.
	SigningKey string `yaml:"signing_key"`
	// Issuer is the iss claim. Defaults to "graphscope".
	Issuer string `yaml:"issuer"`
	// Audience is the aud claim. Defaults to "graphscope-clients".
	Audience string `yaml:"audience"`
	// ExpirationSeconds is the token lifetime. Defaults to 900.
	ExpirationSeconds int `yaml:"expiration_seconds"`
}

// ScopeConfig configures classification and admission.
type ScopeConfig struct {
	// AllowedPlaceTypes lists the admissible resource kinds. Defaults to
	// ["room", "workspace"].
	AllowedPlaceTypes []string `yaml:"allowed_place_types,flow"`
	// AllowGenericResources admits members that match no kind keyword as
	// generic resources instead of falling back to rooms.
	AllowGenericResources bool `yaml:"allow_generic_resources"`
	// MaxScopeSize caps resources per scope. Defaults to 500.
	MaxScopeSize int `yaml:"max_scope_size"`
	// UsePlacesAPI enriches classified resources with places metadata.
	// Defaults to true; set use_places_api: false to disable.
	UsePlacesAPI *bool `yaml:"use_places_api"`
	// CacheTTLSeconds is the scope cache lifetime. Defaults to 900.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// CacheConfig selects and configures the scope cache backend.
type CacheConfig struct {
	// Backend is "memory" (default) or "distributed".
	Backend string `yaml:"backend"`
	// RedisAddr is the redis endpoint, required for the distributed
	// backend.
	RedisAddr string `yaml:"redis_addr,omitempty"`
	// RedisPassword is the redis credential, if any.
	RedisPassword string `yaml:"redis_password,omitempty"`
}

// AuthConfig holds caller and admin credentials.
type AuthConfig struct {
	// APIKeys maps each API key to the group IDs it may log into.
	// Required, non-empty.
	APIKeys map[string][]string `yaml:"api_keys"`
	// AdminKey guards the /admin endpoints. Required.
	AdminKey string `yaml:"admin_key"`
}

// ReadFromFile loads and validates the configuration at path.
func ReadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return ReadConfig(data)
}

// ReadConfig parses and validates raw YAML configuration.
func ReadConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, trace.BadParameter("failed to parse config: %v", err)
	}
	if err := fc.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &fc, nil
}

// CheckAndSetDefaults validates the configuration and fills in defaults.
func (fc *FileConfig) CheckAndSetDefaults() error {
	if fc.ListenAddr == "" {
		fc.ListenAddr = defaults.HTTPListenAddr
	}

	if fc.Graph.TenantID == "" {
		return trace.BadParameter("missing graph.tenant_id")
	}
	if fc.Graph.ClientID == "" {
		return trace.BadParameter("missing graph.client_id")
	}
	if fc.Graph.ClientSecret == "" {
		return trace.BadParameter("missing graph.client_secret")
	}
	if fc.Graph.BaseURL == "" {
		fc.Graph.BaseURL = defaults.GraphBaseURL
	}

	if len(fc.JWT.SigningKey) < defaults.MinSigningKeyBytes {
		return trace.BadParameter("jwt.signing_key must be at least %d bytes", defaults.MinSigningKeyBytes)
	}
	if fc.JWT.Issuer == "" {
		fc.JWT.Issuer = "graphscope"
	}
	if fc.JWT.Audience == "" {
		fc.JWT.Audience = "graphscope-clients"
	}
	if fc.JWT.ExpirationSeconds < 0 {
		return trace.BadParameter("jwt.expiration_seconds must not be negative")
	}
	if fc.JWT.ExpirationSeconds == 0 {
		fc.JWT.ExpirationSeconds = int(defaults.TokenTTL.Seconds())
	}

	if len(fc.Scope.AllowedPlaceTypes) == 0 {
		fc.Scope.AllowedPlaceTypes = []string{string(scopes.KindRoom), string(scopes.KindWorkspace)}
	}
	for _, t := range fc.Scope.AllowedPlaceTypes {
		if _, ok := scopes.ParseKind(t); !ok {
			return trace.BadParameter("scope.allowed_place_types: %q is not a valid resource kind", t)
		}
	}
	if fc.Scope.MaxScopeSize < 0 {
		return trace.BadParameter("scope.max_scope_size must not be negative")
	}
	if fc.Scope.MaxScopeSize == 0 {
		fc.Scope.MaxScopeSize = defaults.MaxScopeSize
	}
	if fc.Scope.UsePlacesAPI == nil {
		usePlaces := true
		fc.Scope.UsePlacesAPI = &usePlaces
	}
	if fc.Scope.CacheTTLSeconds < 0 {
		return trace.BadParameter("scope.cache_ttl_seconds must not be negative")
	}
	if fc.Scope.CacheTTLSeconds == 0 {
		fc.Scope.CacheTTLSeconds = int(defaults.ScopeCacheTTL.Seconds())
	}

	switch fc.Cache.Backend {
	case "", "memory":
		fc.Cache.Backend = "memory"
	case "distributed", "redis":
		if fc.Cache.RedisAddr == "" {
			return trace.BadParameter("cache.redis_addr is required for the distributed backend")
		}
	default:
		return trace.BadParameter("cache.backend must be %q or %q, got %q", "memory", "distributed", fc.Cache.Backend)
	}

	if len(fc.Auth.APIKeys) == 0 {
		return trace.BadParameter("missing auth.api_keys")
	}
	for key, groups := range fc.Auth.APIKeys {
		if key == "" {
			return trace.BadParameter("auth.api_keys contains an empty key")
		}
		if len(groups) == 0 {
			return trace.BadParameter("auth.api_keys entry is bound to no groups")
		}
	}
	if fc.Auth.AdminKey == "" {
		return trace.BadParameter("missing auth.admin_key")
	}

	return nil
}

// AllowedKinds returns the admissible resource kinds as parsed values.
func (fc *FileConfig) AllowedKinds() []scopes.Kind {
	kinds := make([]scopes.Kind, 0, len(fc.Scope.AllowedPlaceTypes))
	for _, t := range fc.Scope.AllowedPlaceTypes {
		kind, ok := scopes.ParseKind(t)
		if !ok {
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}
