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

// Package msgraph implements a minimal Microsoft Graph client covering the
// surface graphscope needs: group member enumeration, the places catalogue,
// and an upstream reachability probe.
package msgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/defaults"
)

// Scopes requested for upstream app tokens.
var Scopes = []string{defaults.GraphScope}

// TokenProvider produces bearer tokens for upstream calls. It is satisfied
// by azidentity credential types; implementations are expected to cache and
// refresh tokens internally.
type TokenProvider interface {
	GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error)
}

// Config is the client configuration.
type Config struct {
	// TokenProvider supplies upstream bearer tokens. Required.
	TokenProvider TokenProvider
	// HTTPClient is the underlying HTTP client. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL overrides the Graph endpoint, used in tests.
	BaseURL string
	// PageSize is the $top value used for paged listings.
	PageSize int
	// Clock is used to pace retries.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.TokenProvider == nil {
		return trace.BadParameter("missing parameter TokenProvider")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.GraphBaseURL + "/v1.0"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.MemberPageSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Client is a Microsoft Graph API client.
type Client struct {
	httpClient    *http.Client
	tokenProvider TokenProvider
	baseURL       *url.URL
	pageSize      int
	clock         clockwork.Clock
}

// NewClient returns a client configured per cfg.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	uri, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{
		httpClient:    cfg.HTTPClient,
		tokenProvider: cfg.TokenProvider,
		baseURL:       uri,
		pageSize:      cfg.PageSize,
		clock:         cfg.Clock,
	}, nil
}

const (
	retryInterval = 1 * time.Second
	maxRetries    = 3
)

func (c *Client) request(ctx context.Context, method string, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	token, err := c.tokenProvider.GetToken(ctx, policy.TokenRequestOptions{Scopes: Scopes})
	if err != nil {
		return nil, trace.Wrap(err, "failed to get upstream authentication token")
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i != 0 {
			select {
			case <-ctx.Done():
				return nil, trace.Wrap(ctx.Err())
			case <-c.clock.After(retryInterval):
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Hard I/O error, bail.
			return nil, trace.ConnectionProblem(err, "upstream request failed")
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return resp, nil
		}

		graphErr := readError(resp.Body)
		resp.Body.Close()
		lastErr = trace.Wrap(statusError(resp.StatusCode, graphErr))
		if !isRetriable(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// iterate pages through a collection endpoint, invoking f with the raw
// "value" array of each page until f returns false or the upstream stops
// sending @odata.nextLink.
func (c *Client) iterate(ctx context.Context, endpoint string, params url.Values, f func(json.RawMessage) bool) error {
	uri := *c.baseURL
	uri.Path = path.Join(uri.Path, endpoint)
	if params == nil {
		params = url.Values{}
	}
	params.Set("$top", strconv.Itoa(c.pageSize))
	uri.RawQuery = params.Encode()
	uriString := uri.String()
	for uriString != "" {
		resp, err := c.request(ctx, http.MethodGet, uriString)
		if err != nil {
			return trace.Wrap(err)
		}

		var page oDataPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return trace.Wrap(err)
		}
		uriString = page.NextLink
		if !f(page.Value) {
			break
		}
	}
	return nil
}

// IterateGroupMembers lists the members of the given directory group,
// calling f once per member until f returns false or enumeration ends.
// Member records of unknown directory types are still surfaced; the caller
// decides what to admit.
func (c *Client) IterateGroupMembers(ctx context.Context, groupID string, f func(*DirectoryMember) bool) error {
	if groupID == "" {
		return trace.BadParameter("missing group ID")
	}
	params := url.Values{"$select": {"id,mail,displayName,userPrincipalName"}}
	var err error
	itErr := c.iterate(ctx, path.Join("groups", groupID, "members"), params, func(msg json.RawMessage) bool {
		var page []*DirectoryMember
		if err = json.Unmarshal(msg, &page); err != nil {
			return false
		}
		for _, member := range page {
			if !f(member) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(itErr)
}

// ListPlaces fetches the places catalogue for one place type, e.g.
// "microsoft.graph.room" or "microsoft.graph.workspace".
func (c *Client) ListPlaces(ctx context.Context, placeType string) ([]*Place, error) {
	var out []*Place
	var err error
	itErr := c.iterate(ctx, path.Join("places", placeType), nil, func(msg json.RawMessage) bool {
		var page []*Place
		if err = json.Unmarshal(msg, &page); err != nil {
			return false
		}
		out = append(out, page...)
		return true
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if itErr != nil {
		return nil, trace.Wrap(itErr)
	}
	return out, nil
}

// Ping performs a cheap authenticated call to verify upstream reachability.
func (c *Client) Ping(ctx context.Context) error {
	uri := *c.baseURL
	uri.Path = path.Join(uri.Path, "organization")
	uri.RawQuery = url.Values{"$select": {"id"}, "$top": {"1"}}.Encode()
	resp, err := c.request(ctx, http.MethodGet, uri.String())
	if err != nil {
		return trace.Wrap(err)
	}
	resp.Body.Close()
	return nil
}

func isRetriable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}
