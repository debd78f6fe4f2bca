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

// Package proxy forwards admitted requests to the upstream Graph API with
// app credentials, propagating deadlines and applying response filtering
// when the authorization decision asks for it.
package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/gravitational/graphscope/lib/defaults"
	"github.com/gravitational/graphscope/lib/filter"
	"github.com/gravitational/graphscope/lib/httplib"
	"github.com/gravitational/graphscope/lib/msgraph"
	"github.com/gravitational/graphscope/lib/scopes"
)

// CorrelationHeader is propagated to upstream calls, generated when the
// client supplied none.
const CorrelationHeader = "X-Correlation-ID"

// Headers never forwarded upstream. Authorization is replaced rather than
// dropped; Host is set from the upstream URL.
var hopHeaders = []string{
	"Host",
	"Authorization",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Te",
	"Trailer",
	"Upgrade",
	"Proxy-Authenticate",
	"Proxy-Authorization",
}

// Headers not copied from the upstream response; the serving layer
// recomputes them for the body it actually writes.
var responseSkipHeaders = []string{
	"Content-Length",
	"Content-Type",
	"Transfer-Encoding",
	"Connection",
}

// ForwarderConfig configures the upstream forwarder.
type ForwarderConfig struct {
	// TokenProvider supplies upstream app credentials. Required.
	TokenProvider msgraph.TokenProvider
	// BaseURL is the upstream endpoint without a version segment.
	// Defaults to defaults.GraphBaseURL.
	BaseURL string
	// Transport performs the upstream round trips. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	// RequestTimeout bounds one upstream call. Defaults to
	// defaults.UpstreamRequestTimeout.
	RequestTimeout time.Duration
	// Log emits one line per forwarded request.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (cfg *ForwarderConfig) CheckAndSetDefaults() error {
	if cfg.TokenProvider == nil {
		return trace.BadParameter("missing parameter TokenProvider")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.GraphBaseURL
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.UpstreamRequestTimeout
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default().With("component", "proxy")
	}
	return nil
}

// Forwarder proxies requests to the upstream API.
type Forwarder struct {
	cfg  ForwarderConfig
	base *url.URL
}

// NewForwarder returns a forwarder configured per cfg.
func NewForwarder(cfg ForwarderConfig) (*Forwarder, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Forwarder{cfg: cfg, base: base}, nil
}

// Forward proxies r to {BaseURL}/{version}/{upstreamPath}, replacing the
// client authorization with a fresh app credential. When filterScope is
// non-nil and the upstream answers 2xx with JSON, the response body is
// rewritten to contain only in-scope items. The request body is streamed;
// response bodies are buffered only when filtering requires it.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, version, upstreamPath string, filterScope *scopes.Scope) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), f.cfg.RequestTimeout)
	defer cancel()

	correlationID := r.Header.Get(CorrelationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	outReq, err := f.buildRequest(ctx, r, version, upstreamPath, correlationID)
	if err != nil {
		f.cfg.Log.ErrorContext(ctx, "failed to build upstream request", "error", err)
		httplib.WriteError(w, r, err)
		return
	}

	resp, err := f.cfg.Transport.RoundTrip(outReq)
	if err != nil {
		f.replyTransportError(ctx, w, r, err, correlationID)
		return
	}
	defer resp.Body.Close()

	f.copyResponse(w, r, resp, filterScope)
	f.cfg.Log.InfoContext(ctx, "forwarded request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"filtered", filterScope != nil,
		"duration", time.Since(start),
		"correlation_id", correlationID,
	)
}

func (f *Forwarder) buildRequest(ctx context.Context, r *http.Request, version, upstreamPath, correlationID string) (*http.Request, error) {
	// upstreamPath arrives percent-encoded; assemble the target textually so
	// neither the path nor the query is re-escaped.
	target := strings.TrimSuffix(f.base.String(), "/") + "/" + version + "/" + strings.TrimPrefix(upstreamPath, "/")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	copyRequestHeaders(outReq.Header, r.Header)

	token, err := f.cfg.TokenProvider.GetToken(ctx, policy.TokenRequestOptions{Scopes: msgraph.Scopes})
	if err != nil {
		return nil, trace.ConnectionProblem(err, "failed to obtain upstream credentials")
	}
	outReq.Header.Set("Authorization", "Bearer "+token.Token)
	outReq.Header.Set(CorrelationHeader, correlationID)
	return outReq, nil
}

func (f *Forwarder) replyTransportError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error, correlationID string) {
	if errors.Is(r.Context().Err(), context.Canceled) {
		// Client went away; aborting the upload is all there is to do.
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		f.cfg.Log.WarnContext(ctx, "upstream request timed out",
			"method", r.Method, "path", r.URL.Path, "correlation_id", correlationID)
		httplib.WriteErrorCode(w, r, http.StatusRequestTimeout, "RequestTimeout",
			"upstream request timed out")
		return
	}
	f.cfg.Log.WarnContext(ctx, "upstream request failed",
		"method", r.Method, "path", r.URL.Path, "error", err, "correlation_id", correlationID)
	httplib.WriteErrorCode(w, r, http.StatusBadGateway, "UpstreamUnavailable",
		"upstream request failed")
}

// copyResponse relays the upstream response. Filtered bodies are buffered
// up to defaults.FilterMaxBodyBytes; everything else streams through.
func (f *Forwarder) copyResponse(w http.ResponseWriter, r *http.Request, resp *http.Response, filterScope *scopes.Scope) {
	copyResponseHeaders(w.Header(), resp.Header)
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	needsFilter := filterScope != nil &&
		resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		strings.Contains(strings.ToLower(contentType), "json")
	if !needsFilter {
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaults.FilterMaxBodyBytes+1))
	if err != nil {
		httplib.WriteErrorCode(w, r, http.StatusBadGateway, "UpstreamUnavailable",
			"failed to read upstream response")
		return
	}
	if len(body) > defaults.FilterMaxBodyBytes {
		// Refusing to forward is safer than forwarding unfiltered.
		httplib.WriteErrorCode(w, r, http.StatusBadGateway, "UpstreamUnavailable",
			"upstream response too large to filter")
		return
	}

	filtered := filter.Apply(body, filterScope)
	w.WriteHeader(resp.StatusCode)
	w.Write(filtered)
}

func copyRequestHeaders(dst, src http.Header) {
	skip := make(map[string]bool, len(hopHeaders))
	for _, h := range hopHeaders {
		skip[h] = true
	}
	for key, values := range src {
		if skip[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	skip := make(map[string]bool, len(responseSkipHeaders))
	for _, h := range responseSkipHeaders {
		skip[h] = true
	}
	for key, values := range src {
		if skip[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
