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

	"github.com/kadirpekel/whatssound/pkg/throttle"
)

// ThrottleConfig overrides the built-in throttle rules.
//
// Listed categories are merged field by field over the defaults. Unknown
// category names add custom categories and must set max_requests and window.
type ThrottleConfig struct {
	// SweepInterval is the janitor period. Default: 5m.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty" json:"sweep_interval,omitempty" jsonschema:"default=5m"`

	// Categories maps category names to rule overrides.
	Categories map[string]RuleConfig `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// RuleConfig is a partial throttle.Rule. Nil fields keep the default.
type RuleConfig struct {
	MaxRequests *int           `yaml:"max_requests,omitempty" json:"max_requests,omitempty" jsonschema:"minimum=0"`
	Window      *time.Duration `yaml:"window,omitempty" json:"window,omitempty"`
	Policy      string         `yaml:"policy,omitempty" json:"policy,omitempty" jsonschema:"enum=fixed_window,enum=sliding_log"`
	Lockout     *time.Duration `yaml:"lockout,omitempty" json:"lockout,omitempty"`
}

// SetDefaults applies default values.
func (c *ThrottleConfig) SetDefaults() {
	if c.SweepInterval == 0 {
		c.SweepInterval = throttle.DefaultSweepInterval
	}
}

// Validate checks that the merged rule table is valid.
func (c *ThrottleConfig) Validate() error {
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must be non-negative")
	}
	_, err := c.Rules()
	return err
}

// Rules merges the overrides over throttle.DefaultRules.
func (c *ThrottleConfig) Rules() (map[throttle.Category]throttle.Rule, error) {
	rules := throttle.DefaultRules()

	for name, override := range c.Categories {
		category := throttle.Category(name)
		rule, known := rules[category]
		if !known {
			if override.MaxRequests == nil || override.Window == nil {
				return nil, fmt.Errorf("custom category %q requires max_requests and window", name)
			}
		}

		if override.MaxRequests != nil {
			rule.MaxRequests = *override.MaxRequests
		}
		if override.Window != nil {
			rule.Window = *override.Window
		}
		if override.Policy != "" {
			policy, err := throttle.ParsePolicy(override.Policy)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", name, err)
			}
			rule.Policy = policy
		}
		if override.Lockout != nil {
			rule.Lockout = *override.Lockout
		}

		rules[category] = rule
	}

	if err := throttle.ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}
