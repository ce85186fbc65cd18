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

package throttle

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
)

// IdentifierFunc extracts the throttle identifier from an HTTP request.
type IdentifierFunc func(r *http.Request) string

// DefaultIdentifierFunc uses the X-User-ID header if present, otherwise the
// client IP.
func DefaultIdentifierFunc(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MiddlewareConfig configures the throttling middleware.
type MiddlewareConfig struct {
	// Throttle is the throttle to consult.
	Throttle *Throttle

	// Category is checked for every request. Defaults to CategoryAPI.
	Category Category

	// IdentifierFunc extracts the identifier from requests.
	// If nil, DefaultIdentifierFunc is used.
	IdentifierFunc IdentifierFunc

	// ExcludedPaths are paths that bypass throttling.
	ExcludedPaths []string

	// OnLimited is called when a request is denied.
	// If nil, a default JSON error response is sent.
	OnLimited func(w http.ResponseWriter, r *http.Request, d Decision)
}

// Middleware creates an HTTP middleware that enforces a category.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Throttle == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	if cfg.Category == "" {
		cfg.Category = CategoryAPI
	}
	if cfg.IdentifierFunc == nil {
		cfg.IdentifierFunc = DefaultIdentifierFunc
	}
	if cfg.OnLimited == nil {
		cfg.OnLimited = WriteLimited
	}

	excludedPaths := make(map[string]bool, len(cfg.ExcludedPaths))
	for _, path := range cfg.ExcludedPaths {
		excludedPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			d := cfg.Throttle.Check(cfg.Category, cfg.IdentifierFunc(r))
			r = r.WithContext(context.WithValue(r.Context(), decisionKey{}, d))

			if !d.Allowed {
				cfg.OnLimited(w, r, d)
				return
			}

			SetHeaders(w, d)
			next.ServeHTTP(w, r)
		})
	}
}

type decisionKey struct{}

// DecisionFromContext returns the Decision stored by Middleware.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// SetHeaders writes the X-RateLimit-* headers for a decision.
func SetHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.RetryAfterSeconds(), 10))
}

// LimitedResponse is the JSON body of a 429 response.
type LimitedResponse struct {
	Error             ErrorBody `json:"error"`
	Category          Category  `json:"category"`
	RetryAfterSeconds int64     `json:"retry_after_seconds"`
}

// ErrorBody is the error object of LimitedResponse.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteLimited sends a 429 response with a Retry-After header.
func WriteLimited(w http.ResponseWriter, _ *http.Request, d Decision) {
	SetHeaders(w, d)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds(), 10))
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(LimitedResponse{
		Error: ErrorBody{
			Code:    "rate_limit_exceeded",
			Message: NewLimitError(d).Error(),
		},
		Category:          d.Category,
		RetryAfterSeconds: d.RetryAfterSeconds(),
	})
}
