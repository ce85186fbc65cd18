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
	"sort"

	"github.com/kadirpekel/whatssound/pkg/payments"
)

// Payment store backends.
const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
)

// PaymentsConfig configures fee policies and transaction storage.
type PaymentsConfig struct {
	// Currency is the ISO code shown in formatted amounts. Default: EUR.
	Currency string `yaml:"currency,omitempty" json:"currency,omitempty" jsonschema:"default=EUR"`

	// Store is "memory" or "sql". Default: memory.
	Store string `yaml:"store,omitempty" json:"store,omitempty" jsonschema:"enum=memory,enum=sql,default=memory"`

	// Policies overrides commission and bounds per kind (tip, golden_boost).
	Policies map[string]PolicyConfig `yaml:"policies,omitempty" json:"policies,omitempty"`
}

// PolicyConfig is a partial payments.Policy. Nil fields keep the default.
type PolicyConfig struct {
	CommissionBps *int64 `yaml:"commission_bps,omitempty" json:"commission_bps,omitempty" jsonschema:"minimum=0,maximum=10000"`
	MinAmount     *int64 `yaml:"min_amount,omitempty" json:"min_amount,omitempty" jsonschema:"minimum=0"`
	MaxAmount     *int64 `yaml:"max_amount,omitempty" json:"max_amount,omitempty" jsonschema:"minimum=0"`
}

// SetDefaults applies default values.
func (c *PaymentsConfig) SetDefaults() {
	if c.Currency == "" {
		c.Currency = payments.DefaultCurrency
	}
	if c.Store == "" {
		c.Store = StoreMemory
	}
}

// Validate checks the payments configuration.
func (c *PaymentsConfig) Validate() error {
	if c.Store != StoreMemory && c.Store != StoreSQL {
		return fmt.Errorf("invalid store %q (valid: memory, sql)", c.Store)
	}
	_, err := c.PolicyTable()
	return err
}

// IsSQL reports whether transactions are stored in the database.
func (c *PaymentsConfig) IsSQL() bool {
	return c.Store == StoreSQL
}

// PolicyTable merges the overrides over payments.DefaultPolicies.
func (c *PaymentsConfig) PolicyTable() (map[payments.Kind]payments.Policy, error) {
	policies := payments.DefaultPolicies()

	names := make([]string, 0, len(c.Policies))
	for name := range c.Policies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind, err := payments.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("policies: %w", err)
		}
		override := c.Policies[name]
		p := policies[kind]
		if override.CommissionBps != nil {
			p.CommissionBps = *override.CommissionBps
		}
		if override.MinAmount != nil {
			p.MinAmount = *override.MinAmount
		}
		if override.MaxAmount != nil {
			p.MaxAmount = *override.MaxAmount
		}

		if p.CommissionBps < 0 || p.CommissionBps > 10000 {
			return nil, fmt.Errorf("policies.%s: commission_bps must be between 0 and 10000", kind)
		}
		if p.MinAmount < 0 || p.MaxAmount < p.MinAmount {
			return nil, fmt.Errorf("policies.%s: require 0 <= min_amount <= max_amount", kind)
		}
		policies[kind] = p
	}
	return policies, nil
}

// Calculator builds a payments.Calculator from the merged policies.
func (c *PaymentsConfig) Calculator() (*payments.Calculator, error) {
	policies, err := c.PolicyTable()
	if err != nil {
		return nil, err
	}
	return payments.NewCalculator(policies, c.Currency), nil
}
