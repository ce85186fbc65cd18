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

// Package auth validates Supabase-issued JWTs and exposes their claims to
// HTTP handlers.
//
// Tokens are verified either with the project's HS256 JWT secret or with a
// JWKS endpoint for asymmetric keys:
//
//	auth:
//	  enabled: true
//	  jwt_secret: ${SUPABASE_JWT_SECRET}
//	  audience: authenticated
//
// The middleware places *Claims in the request context; the throttle uses
// the subject as the caller identifier.
package auth

import "context"

type contextKey struct{}

// Claims represents the validated claims from a JWT token.
type Claims struct {
	// Subject is the user ID (sub claim).
	Subject string `json:"sub"`

	// Email is the user's email address, if present.
	Email string `json:"email,omitempty"`

	// Role is the application role. Supabase keeps it under
	// app_metadata.role; the top-level role claim is used otherwise.
	Role string `json:"role,omitempty"`

	// Custom contains the remaining non-registered claims.
	Custom map[string]any `json:"-"`
}

// HasAnyRole checks if the user has any of the specified roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// ClaimsFromContext extracts claims from a context.
// Returns nil if no claims are present.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(contextKey{}).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims returns a new context with the given claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// SubjectFromContext returns the subject of the claims in ctx, or "".
func SubjectFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}
