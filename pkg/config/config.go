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

// Package config loads the WhatsSound server configuration.
//
// Configuration is YAML (JSON is accepted as a fallback) read from a
// provider.Provider, expanded against the environment, decoded with
// mapstructure, defaulted and validated:
//
//	server:
//	  port: 8080
//	auth:
//	  enabled: true
//	  jwt_secret: ${SUPABASE_JWT_SECRET}
//	throttle:
//	  categories:
//	    chat:
//	      max_requests: 120
//	payments:
//	  store: sql
//	database:
//	  driver: postgres
//	  host: ${DB_HOST:-localhost}
//	  database: whatssound
package config

import (
	"fmt"

	"github.com/kadirpekel/whatssound/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	// Name identifies the deployment in logs and traces.
	Name string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name,default=whatssound"`

	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Logger configures log output.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Auth configures JWT authentication.
	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// Database is required when payments.store is "sql".
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`

	// Throttle overrides the built-in per-category rules.
	Throttle ThrottleConfig `yaml:"throttle,omitempty" json:"throttle,omitempty"`

	// Payments configures fee policies and transaction storage.
	Payments PaymentsConfig `yaml:"payments,omitempty" json:"payments,omitempty"`

	// Observability configures metrics and tracing.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// Default returns a defaulted configuration with no file behind it.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "whatssound"
	}

	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Auth.SetDefaults()
	if c.Database != nil {
		c.Database.SetDefaults()
	}
	c.Throttle.SetDefaults()
	c.Payments.SetDefaults()

	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = c.Name
	}
	c.Observability.SetDefaults()
}

// Validate checks all sections and cross-section references.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if err := c.Throttle.Validate(); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	if err := c.Payments.Validate(); err != nil {
		return fmt.Errorf("payments: %w", err)
	}
	if c.Payments.IsSQL() && c.Database == nil {
		return fmt.Errorf("payments: store %q requires a database section", c.Payments.Store)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// BoolValue returns the value of a bool pointer, or defaultVal if nil.
func BoolValue(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
