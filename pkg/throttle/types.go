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
	"fmt"
	"time"
)

// Category names an action whose requests are throttled together.
type Category string

// Policy selects the counting algorithm of a Rule.
type Policy string

const (
	// PolicyFixedWindow counts requests in a window that restarts once elapsed.
	PolicyFixedWindow Policy = "fixed_window"

	// PolicySlidingLog keeps request timestamps and counts those inside the
	// trailing window. Exhausting the quota may start a lockout.
	PolicySlidingLog Policy = "sliding_log"
)

// ParsePolicy converts a config string to a Policy.
// An empty string selects PolicyFixedWindow.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", string(PolicyFixedWindow):
		return PolicyFixedWindow, nil
	case string(PolicySlidingLog):
		return PolicySlidingLog, nil
	default:
		return "", fmt.Errorf("unknown throttle policy %q (valid: fixed_window, sliding_log)", s)
	}
}

// Rule is the static configuration of one category.
type Rule struct {
	// MaxRequests is the number of requests admitted per window.
	// Zero denies every request.
	MaxRequests int `json:"max_requests"`

	// Window is the counting window. Zero admits every request.
	Window time.Duration `json:"window"`

	// Policy selects the algorithm. Defaults to PolicyFixedWindow.
	Policy Policy `json:"policy"`

	// Lockout is the cooldown entered when a sliding_log quota is exhausted.
	// Zero disables the lockout. Ignored by fixed_window.
	Lockout time.Duration `json:"lockout,omitempty"`
}

// Validate checks the rule values.
func (r Rule) Validate(category Category) error {
	field := string(category)
	if r.MaxRequests < 0 {
		return NewValidationError(field+".max_requests", "must be non-negative")
	}
	if r.Window < 0 {
		return NewValidationError(field+".window", "must be non-negative")
	}
	if r.Lockout < 0 {
		return NewValidationError(field+".lockout", "must be non-negative")
	}
	if _, err := ParsePolicy(string(r.Policy)); err != nil {
		return NewValidationError(field+".policy", err.Error())
	}
	return nil
}

func (r Rule) policy() Policy {
	if r.Policy == "" {
		return PolicyFixedWindow
	}
	return r.Policy
}

// Key is the composite identifier scoping a counter.
// The empty Identifier is a valid key of its own.
type Key struct {
	Category   Category
	Identifier string
}

// String returns "category:identifier".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Category, k.Identifier)
}

// Decision is the outcome of a Check.
type Decision struct {
	Category   Category `json:"category"`
	Identifier string   `json:"identifier"`

	// Allowed reports whether the request was admitted.
	Allowed bool `json:"allowed"`

	// Limit is the MaxRequests of the category.
	Limit int `json:"limit"`

	// Remaining is the quota left after this call was accounted for.
	Remaining int `json:"remaining"`

	// ResetIn is the time until the window or lockout clears.
	// Always positive when Allowed is false.
	ResetIn time.Duration `json:"reset_in"`
}

// RetryAfterSeconds returns ResetIn rounded up to whole seconds.
// Denied decisions report at least one second.
func (d Decision) RetryAfterSeconds() int64 {
	secs := int64((d.ResetIn + time.Second - 1) / time.Second)
	if !d.Allowed && secs < 1 {
		return 1
	}
	return secs
}

// Status is a read-only snapshot of a key.
type Status struct {
	// IsBlocked reports whether the next request would be denied.
	IsBlocked bool `json:"is_blocked"`

	// RequestsRemaining is the quota currently available.
	RequestsRemaining int `json:"requests_remaining"`

	// ResetIn is the time until the window or lockout clears.
	ResetIn time.Duration `json:"reset_in"`
}

// counterState is the per-key bookkeeping for both policies.
type counterState struct {
	// fixed_window
	windowStart time.Time
	count       int

	// sliding_log
	timestamps   []time.Time
	blockedUntil time.Time
}
