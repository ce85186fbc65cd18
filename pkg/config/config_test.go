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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
	assert.Nil(t, cfg.Database)
}

func TestThrottleConfig_ZeroOverrides(t *testing.T) {
	zero := 0
	noLockout := time.Duration(0)
	c := ThrottleConfig{Categories: map[string]RuleConfig{
		"payments": {Lockout: &noLockout},
		"signup":   {MaxRequests: &zero},
	}}

	rules, err := c.Rules()
	require.NoError(t, err)

	assert.Equal(t, throttle.Rule{
		MaxRequests: 10,
		Window:      time.Minute,
		Policy:      throttle.PolicySlidingLog,
	}, rules[throttle.CategoryPayments])
	assert.Equal(t, 0, rules[throttle.CategorySignup].MaxRequests)

	// Overrides never mutate the built-in table.
	assert.Equal(t, throttle.DefaultLockout, throttle.DefaultRules()[throttle.CategoryPayments].Lockout)
}

func TestPaymentsConfig_Calculator(t *testing.T) {
	bps := int64(2000)
	c := PaymentsConfig{Policies: map[string]PolicyConfig{"tip": {CommissionBps: &bps}}}
	c.SetDefaults()

	calc, err := c.Calculator()
	require.NoError(t, err)

	fees, err := calc.CalculateFees(1000, payments.KindTip)
	require.NoError(t, err)
	assert.Equal(t, int64(200), fees.Fee)
	assert.Equal(t, int64(800), fees.Net)
	assert.Equal(t, "EUR", calc.Currency())
}

func TestAuthConfig_Validate(t *testing.T) {
	assert.NoError(t, (&AuthConfig{}).Validate())
	assert.Error(t, (&AuthConfig{Enabled: true, JWTSecret: "0123456789abcdef0123456789abcdef", JWKSURL: "https://x"}).Validate())
	assert.NoError(t, (&AuthConfig{Enabled: true, JWKSURL: "https://project.supabase.co/auth/v1/.well-known/jwks.json"}).Validate())
}
