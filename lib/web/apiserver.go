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

// Package web implements the graphscope HTTP API: the auth endpoints, the
// admin surface, and the transparent proxy routes that mirror the upstream
// URL space.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gravitational/trace"
	"github.com/julienschmidt/httprouter"

	"github.com/gravitational/graphscope/lib/auth"
	"github.com/gravitational/graphscope/lib/authz"
	"github.com/gravitational/graphscope/lib/defaults"
	"github.com/gravitational/graphscope/lib/httplib"
	"github.com/gravitational/graphscope/lib/proxy"
	"github.com/gravitational/graphscope/lib/scopes"
	"github.com/gravitational/graphscope/lib/tokens"
)

// proxiedVersions are the upstream API versions mirrored 1:1.
var proxiedVersions = []string{"v1.0", "beta"}

// Pinger probes upstream reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the API handler.
type Config struct {
	// Auth implements the session lifecycle. Required.
	Auth *auth.Server
	// Forwarder proxies admitted requests upstream. Required.
	Forwarder *proxy.Forwarder
	// Pinger probes the upstream for /admin/health. Required.
	Pinger Pinger
	// AdminKey guards the /admin routes. Required.
	AdminKey string
	// Log emits request diagnostics.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.Auth == nil {
		return trace.BadParameter("missing parameter Auth")
	}
	if cfg.Forwarder == nil {
		return trace.BadParameter("missing parameter Forwarder")
	}
	if cfg.Pinger == nil {
		return trace.BadParameter("missing parameter Pinger")
	}
	if cfg.AdminKey == "" {
		return trace.BadParameter("missing parameter AdminKey")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default().With("component", "web")
	}
	return nil
}

// Handler is the graphscope HTTP API handler.
type Handler struct {
	httprouter.Router
	cfg Config
}

// NewHandler returns a handler with all routes registered.
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	h := &Handler{cfg: cfg}

	h.POST("/auth/login", httplib.MakeHandler(h.login))
	h.POST("/auth/refresh", httplib.MakeHandler(h.refresh))
	h.POST("/auth/logout", httplib.MakeHandler(h.logout))

	h.POST("/admin/refresh/:group", httplib.MakeHandler(h.adminRefresh))
	h.GET("/admin/health", httplib.MakeHandler(h.health))

	// The proxy mirrors every method under each upstream version.
	for _, version := range proxiedVersions {
		version := version
		pattern := "/" + version + "/*path"
		for _, method := range []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodHead,
		} {
			h.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
				h.proxyRequest(w, r, version)
			})
		}
	}

	return h, nil
}

type loginRequest struct {
	APIKey  string `json:"apiKey"`
	GroupID string `json:"groupId"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (interface{}, error) {
	var req loginRequest
	if err := httplib.ReadJSON(r, &req); err != nil {
		return nil, trace.Wrap(err)
	}
	result, err := h.cfg.Auth.Login(r.Context(), req.APIKey, req.GroupID)
	if err != nil {
		writeAPIError(w, r, err)
		return nil, nil
	}
	return result, nil
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (interface{}, error) {
	raw, ok := bearerToken(r)
	if !ok {
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "TokenMalformed", "missing bearer token")
		return nil, nil
	}
	result, err := h.cfg.Auth.Refresh(r.Context(), raw)
	if err != nil {
		writeAPIError(w, r, err)
		return nil, nil
	}
	return result, nil
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (interface{}, error) {
	raw, ok := bearerToken(r)
	if !ok {
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "TokenMalformed", "missing bearer token")
		return nil, nil
	}
	if err := h.cfg.Auth.Logout(r.Context(), raw); err != nil {
		writeAPIError(w, r, err)
		return nil, nil
	}
	return map[string]string{"status": "ok"}, nil
}

func (h *Handler) adminRefresh(w http.ResponseWriter, r *http.Request, p httprouter.Params) (interface{}, error) {
	if !h.adminAuthorized(r) {
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "InvalidCredentials", "invalid admin key")
		return nil, nil
	}
	groupID := p.ByName("group")
	removed, err := h.cfg.Auth.InvalidateGroup(r.Context(), groupID)
	if err != nil {
		writeAPIError(w, r, err)
		return nil, nil
	}
	return map[string]interface{}{"groupId": groupID, "removed": removed}, nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (interface{}, error) {
	ctx, cancel := context.WithTimeout(r.Context(), defaults.HealthProbeTimeout)
	defer cancel()
	if err := h.cfg.Pinger.Ping(ctx); err != nil {
		h.cfg.Log.WarnContext(ctx, "upstream health probe failed", "error", err)
		httplib.ReplyJSON(w, http.StatusServiceUnavailable,
			map[string]string{"status": "degraded", "upstream": "unreachable"})
		return nil, nil
	}
	return map[string]string{"status": "ok", "upstream": "ok"}, nil
}

// proxyRequest authorizes and forwards one mirrored request.
func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, version string) {
	raw, ok := bearerToken(r)
	if !ok {
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "TokenMalformed", "missing bearer token")
		return
	}
	session, err := h.cfg.Auth.ValidateSession(r.Context(), raw)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	upstreamPath := versionTail(r.URL.EscapedPath(), version)
	decision := authz.Decide(r.Method, upstreamPath, session.Scope)
	switch decision.Action {
	case authz.ActionDeny:
		h.cfg.Log.InfoContext(r.Context(), "denied out-of-scope request",
			"method", r.Method,
			"path", r.URL.Path,
			"resource", decision.Resource,
			"token_id", session.Claims.ID,
		)
		httplib.WriteErrorCode(w, r, http.StatusForbidden, "OutOfScope",
			"resource "+decision.Resource+" is not in scope")
	case authz.ActionFilterCollection:
		h.cfg.Forwarder.Forward(w, r, version, upstreamPath, session.Scope)
	default:
		h.cfg.Forwarder.Forward(w, r, version, upstreamPath, nil)
	}
}

func (h *Handler) adminAuthorized(r *http.Request) bool {
	raw, ok := bearerToken(r)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(raw), []byte(h.cfg.AdminKey)) == 1
}

// bearerToken extracts the bearer credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// versionTail strips the leading version segment from an escaped URL path.
func versionTail(escapedPath, version string) string {
	tail := strings.TrimPrefix(escapedPath, "/"+version)
	return strings.TrimPrefix(tail, "/")
}

// writeAPIError maps session and scope errors onto their API error codes,
// deferring to the generic trace mapping for everything else.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "InvalidCredentials", err.Error())
	case errors.Is(err, scopes.ErrEmptyScope):
		httplib.WriteErrorCode(w, r, http.StatusNotFound, "EmptyScope", "group produced no admissible resources")
	case errors.Is(err, tokens.ErrScopeMissing):
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "ScopeMissing", "scope is no longer available, log in again")
	case errors.Is(err, tokens.ErrRevoked):
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "TokenRevoked", "token has been revoked")
	case errors.Is(err, tokens.ErrExpired):
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "TokenExpired", "token has expired")
	case errors.Is(err, tokens.ErrSignatureInvalid):
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "SignatureInvalid", "token signature is invalid")
	case errors.Is(err, tokens.ErrMalformed):
		httplib.WriteErrorCode(w, r, http.StatusUnauthorized, "TokenMalformed", "token is malformed")
	case errors.Is(err, context.DeadlineExceeded):
		httplib.WriteErrorCode(w, r, http.StatusRequestTimeout, "RequestTimeout", "upstream request timed out")
	default:
		httplib.WriteError(w, r, err)
	}
}
