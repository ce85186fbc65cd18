// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the throttle and payment services over HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /version
//	GET    /metrics                                  (when metrics are enabled)
//	POST   /v1/throttle/check                        (authenticated)
//	GET    /v1/throttle/status/{category}/{identifier} (admin)
//	GET    /v1/throttle/rules                        (admin)
//	POST   /v1/throttle/sweep                        (admin)
//	DELETE /v1/throttle                              (admin)
//	GET    /v1/payments/fees?amount=&kind=
//	POST   /v1/payments/tips                         (authenticated)
//	POST   /v1/payments/golden-boosts                (authenticated)
//	GET    /v1/payments/transactions                 (authenticated)
//	GET    /v1/payments/transactions/{id}            (authenticated)
//
// Every request outside the operational endpoints is charged to the api
// throttle category.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/kadirpekel/whatssound"
	"github.com/kadirpekel/whatssound/pkg/auth"
	"github.com/kadirpekel/whatssound/pkg/config"
	"github.com/kadirpekel/whatssound/pkg/observability"
	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

// Server is the WhatsSound HTTP server.
type Server struct {
	cfg      *config.Config
	throttle *throttle.Throttle
	payments *payments.Service

	validator auth.TokenValidator
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	version   whatssound.Info

	handler    http.Handler
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAuthValidator enables bearer token authentication.
func WithAuthValidator(v auth.TokenValidator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithMetrics records request metrics and serves them on the metrics endpoint.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracer traces every request.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithVersion overrides the build information served on /version.
func WithVersion(info whatssound.Info) Option {
	return func(s *Server) {
		s.version = info
	}
}

// New creates a Server. The throttle and payment service are required.
func New(cfg *config.Config, t *throttle.Throttle, svc *payments.Service, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if t == nil {
		return nil, fmt.Errorf("throttle is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("payment service is required")
	}

	s := &Server{
		cfg:      cfg,
		throttle: t,
		payments: svc,
		version:  whatssound.GetVersion(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Auth.Enabled && s.validator == nil {
		return nil, fmt.Errorf("auth is enabled but no token validator was provided")
	}
	if !cfg.Auth.Enabled {
		slog.Warn("Authentication disabled: callers are identified by the X-User-ID header and admin routes are open")
	}

	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.cfg.Server.Address()
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("HTTP server starting", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}
