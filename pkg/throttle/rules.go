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
	"sort"
	"time"
)

// Built-in categories.
const (
	CategoryPayments      Category = "payments"
	CategoryGoldenBoost   Category = "goldenBoost"
	CategoryChat          Category = "chat"
	CategoryReactions     Category = "reactions"
	CategoryAPI           Category = "api"
	CategoryLogin         Category = "login"
	CategorySignup        Category = "signup"
	CategoryPasswordReset Category = "passwordReset"
	CategoryVote          Category = "vote"
	CategoryRequestSong   Category = "requestSong"
	CategorySendMessage   Category = "sendMessage"
)

const (
	// DefaultWindow is the window of every built-in category.
	DefaultWindow = time.Minute

	// DefaultLockout is the cooldown of the sliding_log categories.
	DefaultLockout = 5 * time.Minute

	// DefaultSweepInterval is how often the janitor evicts expired keys.
	DefaultSweepInterval = 5 * time.Minute
)

// DefaultRules returns the built-in rule table.
// Payment categories use a sliding log with a lockout, everything else a
// fixed window.
func DefaultRules() map[Category]Rule {
	fixed := func(max int) Rule {
		return Rule{MaxRequests: max, Window: DefaultWindow, Policy: PolicyFixedWindow}
	}
	punitive := func(max int) Rule {
		return Rule{MaxRequests: max, Window: DefaultWindow, Policy: PolicySlidingLog, Lockout: DefaultLockout}
	}

	return map[Category]Rule{
		CategoryPayments:      punitive(10),
		CategoryGoldenBoost:   punitive(5),
		CategoryChat:          fixed(60),
		CategoryReactions:     fixed(30),
		CategoryAPI:           fixed(100),
		CategoryLogin:         fixed(5),
		CategorySignup:        fixed(3),
		CategoryPasswordReset: fixed(2),
		CategoryVote:          fixed(30),
		CategoryRequestSong:   fixed(10),
		CategorySendMessage:   fixed(60),
	}
}

// ValidateRules validates every rule of a table.
func ValidateRules(rules map[Category]Rule) error {
	for _, c := range SortedCategories(rules) {
		if c == "" {
			return NewValidationError("category", "name cannot be empty")
		}
		if err := rules[c].Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// SortedCategories returns the categories of a table in lexical order.
func SortedCategories(rules map[Category]Rule) []Category {
	out := make([]Category, 0, len(rules))
	for c := range rules {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders a rule as "10/1m0s sliding_log lockout=5m0s".
func (r Rule) String() string {
	s := fmt.Sprintf("%d/%s %s", r.MaxRequests, r.Window, r.policy())
	if r.policy() == PolicySlidingLog && r.Lockout > 0 {
		s += fmt.Sprintf(" lockout=%s", r.Lockout)
	}
	return s
}

func cloneRules(rules map[Category]Rule) map[Category]Rule {
	out := make(map[Category]Rule, len(rules))
	for c, r := range rules {
		if r.Policy == "" {
			r.Policy = PolicyFixedWindow
		}
		out[c] = r
	}
	return out
}
