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

// Package tokens mints and validates the bearer tokens issued at login.
// Tokens are HS256 JWTs carrying a random token ID; the token ID is the
// only handle to the materialized scope, which lives in the scope cache.
package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/defaults"
)

// Typed validation failures. The transport layer maps each to its error
// code; all of them mean the caller must log in again.
var (
	ErrMalformed        = errors.New("token is malformed")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
	ErrRevoked          = errors.New("token has been revoked")
	ErrScopeMissing     = errors.New("token scope is no longer available")
)

// Claims are the claims carried by issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	// GroupID is the directory group the token's scope was built from.
	// Advisory; the scope cache is authoritative.
	GroupID string `json:"gid"`
	// ResourceCount is the size of the scope at mint time. Advisory.
	ResourceCount int `json:"rc"`
}

// Config configures the token service.
type Config struct {
	// SigningKey is the HMAC secret, at least
	// defaults.MinSigningKeyBytes long. Required.
	SigningKey []byte
	// Issuer is the iss claim stamped on and required of tokens.
	Issuer string
	// Audience is the aud claim stamped on and required of tokens.
	Audience string
	// TTL is the token lifetime. Defaults to defaults.TokenTTL.
	TTL time.Duration
	// Skew is the clock tolerance applied during validation, capped at
	// five minutes. Defaults to defaults.ClockSkew.
	Skew time.Duration
	// Clock is used for time claims.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (cfg *Config) CheckAndSetDefaults() error {
	if len(cfg.SigningKey) < defaults.MinSigningKeyBytes {
		return trace.BadParameter("signing key must be at least %d bytes", defaults.MinSigningKeyBytes)
	}
	if cfg.Issuer == "" {
		return trace.BadParameter("missing parameter Issuer")
	}
	if cfg.Audience == "" {
		return trace.BadParameter("missing parameter Audience")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TokenTTL
	}
	if cfg.Skew <= 0 {
		cfg.Skew = defaults.ClockSkew
	}
	if cfg.Skew > 5*time.Minute {
		cfg.Skew = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Service mints, validates and revokes bearer tokens.
type Service struct {
	cfg     Config
	revoked *RevocationSet
}

// NewService returns a token service configured per cfg.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Service{
		cfg:     cfg,
		revoked: NewRevocationSet(cfg.Clock),
	}, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.cfg.TTL
}

// Revocations exposes the revocation set so the service supervisor can run
// periodic sweeps.
func (s *Service) Revocations() *RevocationSet {
	return s.revoked
}

// Mint issues a signed token for subject, bound to a scope of resourceCount
// resources built from groupID. The returned claims carry the generated
// token ID to use as the scope cache key.
func (s *Service) Mint(subject, groupID string, resourceCount int) (string, *Claims, error) {
	tokenID, err := newTokenID()
	if err != nil {
		return "", nil, trace.Wrap(err)
	}
	now := s.cfg.Clock.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
		GroupID:       groupID,
		ResourceCount: resourceCount,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", nil, trace.Wrap(err)
	}
	return signed, claims, nil
}

// Validate parses and verifies a raw token: signature, issuer, audience,
// time bounds within the configured skew, and revocation. The scope itself
// is resolved by the caller using the returned token ID.
func (s *Service) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.cfg.Skew),
		jwt.WithTimeFunc(s.cfg.Clock.Now),
	)
	if err != nil {
		return nil, trace.Wrap(convertJWTError(err))
	}
	if claims.ID == "" {
		return nil, trace.Wrap(ErrMalformed)
	}
	if s.revoked.Contains(claims.ID) {
		return nil, trace.Wrap(ErrRevoked)
	}
	return claims, nil
}

// Revoke invalidates the presented token until its natural expiry. The raw
// token must carry a valid signature; expired or already-revoked tokens
// revoke idempotently.
func (s *Service) Revoke(raw string) (bool, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithLeeway(s.cfg.Skew),
		jwt.WithTimeFunc(s.cfg.Clock.Now),
		// An expired token has nothing left to revoke, but treating it
		// as success keeps logout idempotent.
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		converted := convertJWTError(err)
		if errors.Is(converted, ErrExpired) {
			return true, nil
		}
		return false, trace.Wrap(converted)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return false, trace.Wrap(ErrMalformed)
	}
	s.revoked.Add(claims.ID, claims.ExpiresAt.Time.Add(s.cfg.Skew))
	return true, nil
}

// ParseSigned verifies the signature of raw and returns its claims without
// enforcing time bounds or revocation. Used for cleanup paths that need the
// token ID of an already-dead token.
func (s *Service) ParseSigned(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, trace.Wrap(convertJWTError(err))
	}
	if claims.ID == "" {
		return nil, trace.Wrap(ErrMalformed)
	}
	return claims, nil
}

func (s *Service) keyFunc(token *jwt.Token) (interface{}, error) {
	return s.cfg.SigningKey, nil
}

// convertJWTError narrows jwt library failures into this package's typed
// errors.
func convertJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}

// newTokenID returns a URL-safe token ID with defaults.TokenIDBytes of
// CSPRNG entropy.
func newTokenID() (string, error) {
	buf := make([]byte, defaults.TokenIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", trace.Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
