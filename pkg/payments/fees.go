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

package payments

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind is the type of a payment.
type Kind string

const (
	// KindTip is a tip from a listener to a DJ.
	KindTip Kind = "tip"

	// KindGoldenBoost is a platform-only purchase.
	KindGoldenBoost Kind = "golden_boost"
)

// DefaultCurrency is the ISO currency of every amount.
const DefaultCurrency = "EUR"

const bpsDenominator = 10000

// Kinds returns the supported payment kinds.
func Kinds() []Kind {
	return []Kind{KindTip, KindGoldenBoost}
}

// ParseKind converts a string to a Kind. Hyphens are accepted in place of
// underscores.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case KindTip, KindGoldenBoost:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Policy holds the commission and amount bounds of a kind.
type Policy struct {
	// CommissionBps is the platform commission in basis points.
	CommissionBps int64 `json:"commission_bps"`

	// MinAmount and MaxAmount bound the amount in cents, inclusive.
	MinAmount int64 `json:"min_amount"`
	MaxAmount int64 `json:"max_amount"`
}

// DefaultPolicies returns the built-in commission and amount bounds.
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindTip:         {CommissionBps: 1500, MinAmount: 100, MaxAmount: 50000},
		KindGoldenBoost: {CommissionBps: 10000, MinAmount: 99, MaxAmount: 9999},
	}
}

// Fees is the split of an amount between platform and recipient.
type Fees struct {
	Amount int64 `json:"amount"`
	Fee    int64 `json:"fee"`
	Net    int64 `json:"net"`
}

// Validation is the result of ValidateAmount.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Calculator computes fees and validates amounts against a policy table.
type Calculator struct {
	policies map[Kind]Policy
	currency string
}

// NewCalculator creates a Calculator. Nil policies select DefaultPolicies
// and an empty currency selects DefaultCurrency.
func NewCalculator(policies map[Kind]Policy, currency string) *Calculator {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Calculator{policies: policies, currency: currency}
}

var defaultCalculator = NewCalculator(nil, "")

// CalculateFees splits amount using the default policies.
func CalculateFees(amount int64, kind Kind) (Fees, error) {
	return defaultCalculator.CalculateFees(amount, kind)
}

// ValidateAmount checks amount against the default policies.
func ValidateAmount(amount int64, kind Kind) Validation {
	return defaultCalculator.ValidateAmount(amount, kind)
}

// FormatAmount renders cents in the default currency, e.g. "1.00 EUR".
func FormatAmount(cents int64) string {
	return defaultCalculator.FormatAmount(cents)
}

// Policy returns the policy of a kind.
func (c *Calculator) Policy(kind Kind) (Policy, error) {
	p, ok := c.policies[kind]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
	return p, nil
}

// Currency returns the currency used for formatting.
func (c *Calculator) Currency() string {
	return c.currency
}

// CalculateFees returns fee = round(amount * commission) and
// net = amount - fee. Rounding is half up.
func (c *Calculator) CalculateFees(amount int64, kind Kind) (Fees, error) {
	p, err := c.Policy(kind)
	if err != nil {
		return Fees{}, err
	}
	if amount < 0 {
		return Fees{}, &AmountError{Kind: kind, Amount: amount, Reason: "amount cannot be negative"}
	}
	if p.CommissionBps > 0 && amount > (math.MaxInt64-bpsDenominator/2)/p.CommissionBps {
		return Fees{}, &AmountError{Kind: kind, Amount: amount, Reason: "amount is too large"}
	}

	fee := (amount*p.CommissionBps + bpsDenominator/2) / bpsDenominator
	return Fees{Amount: amount, Fee: fee, Net: amount - fee}, nil
}

// ValidateAmount checks amount against the bounds of kind.
func (c *Calculator) ValidateAmount(amount int64, kind Kind) Validation {
	if err := c.Validate(amount, kind); err != nil {
		var ae *AmountError
		if errors.As(err, &ae) {
			return Validation{Error: ae.Reason}
		}
		return Validation{Error: err.Error()}
	}
	return Validation{Valid: true}
}

// Validate is ValidateAmount returning an error, *AmountError for amounts
// out of bounds.
func (c *Calculator) Validate(amount int64, kind Kind) error {
	p, err := c.Policy(kind)
	if err != nil {
		return err
	}
	switch {
	case amount < p.MinAmount:
		return &AmountError{
			Kind:   kind,
			Amount: amount,
			Reason: fmt.Sprintf("minimum amount is %s", c.FormatAmount(p.MinAmount)),
		}
	case amount > p.MaxAmount:
		return &AmountError{
			Kind:   kind,
			Amount: amount,
			Reason: fmt.Sprintf("maximum amount is %s", c.FormatAmount(p.MaxAmount)),
		}
	}
	return nil
}

// FormatAmount renders cents as "12.34 EUR".
func (c *Calculator) FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, c.currency)
}
