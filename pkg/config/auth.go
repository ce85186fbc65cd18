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

package config

import (
	"fmt"
	"time"
)

// AuthConfig configures JWT authentication of API callers.
type AuthConfig struct {
	// Enabled turns on authentication. When disabled, callers identify
	// themselves with the X-User-ID header.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// JWTSecret is the HS256 secret of the Supabase project.
	JWTSecret string `yaml:"jwt_secret,omitempty" json:"jwt_secret,omitempty"`

	// JWKSURL serves asymmetric signing keys. Mutually exclusive with JWTSecret.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`

	// RefreshInterval is the minimum JWKS refresh interval.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`

	// Issuer is the expected iss claim, if set.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience is the expected aud claim. Default: authenticated.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty" jsonschema:"default=authenticated"`

	// AdminRole guards the throttle administration routes. Default: admin.
	AdminRole string `yaml:"admin_role,omitempty" json:"admin_role,omitempty" jsonschema:"default=admin"`

	// ExcludedPaths bypass authentication.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty"`
}

// SetDefaults applies default values.
func (c *AuthConfig) SetDefaults() {
	if c.Audience == "" {
		c.Audience = "authenticated"
	}
	if c.AdminRole == "" {
		c.AdminRole = "admin"
	}
	if c.JWKSURL != "" && c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return fmt.Errorf("jwt_secret or jwks_url is required when auth is enabled")
	}
	if c.JWTSecret != "" && c.JWKSURL != "" {
		return fmt.Errorf("jwt_secret and jwks_url are mutually exclusive")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters")
	}
	return nil
}
