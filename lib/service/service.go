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

// Package service assembles the graphscope components from file
// configuration and runs the HTTP server until shutdown.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/graphscope/lib/auth"
	"github.com/gravitational/graphscope/lib/config"
	"github.com/gravitational/graphscope/lib/defaults"
	"github.com/gravitational/graphscope/lib/msgraph"
	"github.com/gravitational/graphscope/lib/proxy"
	"github.com/gravitational/graphscope/lib/scopes"
	"github.com/gravitational/graphscope/lib/scopes/cache"
	"github.com/gravitational/graphscope/lib/tokens"
	"github.com/gravitational/graphscope/lib/web"
)

// Service is an assembled graphscope instance.
type Service struct {
	fc      *config.FileConfig
	handler *web.Handler
	cache   cache.Cache
	tokens  *tokens.Service
	log     *slog.Logger
}

// New wires the service from validated file configuration.
func New(fc *config.FileConfig) (*Service, error) {
	log := slog.Default().With("component", "service")
	clock := clockwork.NewRealClock()

	credential, err := azidentity.NewClientSecretCredential(
		fc.Graph.TenantID, fc.Graph.ClientID, fc.Graph.ClientSecret, nil)
	if err != nil {
		return nil, trace.Wrap(err, "failed to initialize upstream credentials")
	}

	graph, err := msgraph.NewClient(msgraph.Config{
		TokenProvider: credential,
		BaseURL:       fc.Graph.BaseURL + "/v1.0",
		Clock:         clock,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	builder, err := scopes.NewBuilder(scopes.BuilderConfig{
		Graph:        graph,
		AllowedKinds: fc.AllowedKinds(),
		AllowGeneric: fc.Scope.AllowGenericResources,
		MaxScopeSize: fc.Scope.MaxScopeSize,
		TTL:          time.Duration(fc.Scope.CacheTTLSeconds) * time.Second,
		UsePlacesAPI: *fc.Scope.UsePlacesAPI,
		Clock:        clock,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	scopeCache, err := cache.New(cache.Config{
		Backend:       fc.Cache.Backend,
		RedisAddr:     fc.Cache.RedisAddr,
		RedisPassword: fc.Cache.RedisPassword,
		Clock:         clock,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	tokenService, err := tokens.NewService(tokens.Config{
		SigningKey: []byte(fc.JWT.SigningKey),
		Issuer:     fc.JWT.Issuer,
		Audience:   fc.JWT.Audience,
		TTL:        time.Duration(fc.JWT.ExpirationSeconds) * time.Second,
		Clock:      clock,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	authServer, err := auth.NewServer(auth.Config{
		APIKeys:  fc.Auth.APIKeys,
		Builder:  builder,
		Cache:    scopeCache,
		Tokens:   tokenService,
		ScopeTTL: time.Duration(fc.Scope.CacheTTLSeconds) * time.Second,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	forwarder, err := proxy.NewForwarder(proxy.ForwarderConfig{
		TokenProvider: credential,
		BaseURL:       fc.Graph.BaseURL,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	handler, err := web.NewHandler(web.Config{
		Auth:      authServer,
		Forwarder: forwarder,
		Pinger:    graph,
		AdminKey:  fc.Auth.AdminKey,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &Service{
		fc:      fc,
		handler: handler,
		cache:   scopeCache,
		tokens:  tokenService,
		log:     log,
	}, nil
}

// Run serves the API until ctx is canceled or a termination signal arrives,
// then drains in-flight requests within defaults.ShutdownTimeout.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.tokens.Revocations().RunSweeper(ctx)

	server := &http.Server{
		Addr:    s.fc.ListenAddr,
		Handler: s.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "listening", "addr", s.fc.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return trace.Wrap(err)
	case <-ctx.Done():
	}

	s.log.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return trace.Wrap(err)
	}
	if err := s.cache.Close(); err != nil {
		s.log.WarnContext(ctx, "failed to close scope cache", "error", err)
	}
	return nil
}
