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

package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/whatssound/pkg/auth"
	"github.com/kadirpekel/whatssound/pkg/observability"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

const userIDHeader = "X-User-ID"

func (s *Server) operationalPaths() []string {
	paths := []string{"/health", "/version"}
	if s.metrics != nil {
		paths = append(paths, s.cfg.Observability.Metrics.Endpoint)
	}
	return paths
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Order: observability -> recoverer -> request id -> logging -> auth -> throttle
	if s.tracer != nil || s.metrics != nil {
		r.Use(observability.HTTPMiddleware(s.tracer, s.metrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if s.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(loggingMiddleware)

	if s.validator != nil {
		r.Use(auth.HTTPMiddleware(s.validator, auth.MiddlewareOptions{
			ExcludedPaths: append(s.operationalPaths(), s.cfg.Auth.ExcludedPaths...),
			Optional:      true,
		}))
	}

	r.Use(throttle.Middleware(throttle.MiddlewareConfig{
		Throttle:       s.throttle,
		Category:       throttle.CategoryAPI,
		IdentifierFunc: s.identify,
		ExcludedPaths:  s.operationalPaths(),
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	if s.metrics != nil {
		r.Handle(s.cfg.Observability.Metrics.Endpoint, s.metrics.Handler())
	}

	r.Route("/v1/throttle", func(r chi.Router) {
		r.With(s.requireUser).Post("/check", s.handleThrottleCheck)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/status/{category}/{identifier}", s.handleThrottleStatus)
			r.Get("/rules", s.handleThrottleRules)
			r.Post("/sweep", s.handleThrottleSweep)
			r.Delete("/", s.handleThrottleReset)
		})
	})

	r.Route("/v1/payments", func(r chi.Router) {
		r.Get("/fees", s.handleFees)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/tips", s.handleCreateTip)
			r.Post("/golden-boosts", s.handlePurchaseGoldenBoost)
			r.Get("/transactions", s.handleListTransactions)
			r.Get("/transactions/{id}", s.handleGetTransaction)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

// userID returns the authenticated subject. With auth disabled it falls
// back to the X-User-ID header.
func (s *Server) userID(r *http.Request) string {
	if sub := auth.SubjectFromContext(r.Context()); sub != "" {
		return sub
	}
	if !s.cfg.Auth.Enabled {
		return r.Header.Get(userIDHeader)
	}
	return ""
}

func (s *Server) isAdmin(r *http.Request) bool {
	if !s.cfg.Auth.Enabled {
		return true
	}
	claims := auth.ClaimsFromContext(r.Context())
	return claims != nil && claims.HasAnyRole(s.cfg.Auth.AdminRole)
}

// identify keys the api throttle by user, falling back to the client IP.
func (s *Server) identify(r *http.Request) string {
	if id := s.userID(r); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.userID(r) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", auth.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	if !s.cfg.Auth.Enabled {
		return next
	}
	return auth.RequireRole(s.cfg.Auth.AdminRole)(next)
}

// loggingMiddleware logs requests at debug level.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
