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
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// minDeniedResetIn is the floor of ResetIn for denied decisions.
const minDeniedResetIn = time.Millisecond

// Recorder receives throttle outcomes, typically to export metrics.
type Recorder interface {
	RecordDecision(category Category, allowed bool)
	RecordEvictions(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(Category, bool) {}
func (nopRecorder) RecordEvictions(int)           {}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock overrides the time source. Tests use it to advance time.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSweepInterval sets how often the janitor started by Start sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Throttle) {
		if d > 0 {
			t.sweepInterval = d
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Throttle) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithLogger sets the logger used by the janitor.
func WithLogger(l *slog.Logger) Option {
	return func(t *Throttle) {
		if l != nil {
			t.logger = l
		}
	}
}

// Throttle tracks per-key request counters for a table of categories.
// All methods are safe for concurrent use.
type Throttle struct {
	mu    sync.Mutex
	rules map[Category]Rule
	state map[Key]*counterState

	now           func() time.Time
	sweepInterval time.Duration
	recorder      Recorder
	logger        *slog.Logger

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a Throttle for the given rule table.
func New(rules map[Category]Rule, opts ...Option) (*Throttle, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("invalid throttle rules: %w", err)
	}

	t := &Throttle{
		rules:         cloneRules(rules),
		state:         make(map[Key]*counterState),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		recorder:      nopRecorder{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Check decides whether a request for (category, identifier) is admitted
// and accounts for it. It panics with *ConfigurationError if the category
// is not configured.
func (t *Throttle) Check(category Category, identifier string) Decision {
	t.mu.Lock()
	rule, ok := t.rules[category]
	if !ok {
		t.mu.Unlock()
		panic(&ConfigurationError{Category: category})
	}

	key := Key{Category: category, Identifier: identifier}
	now := t.now()

	var d Decision
	switch rule.policy() {
	case PolicySlidingLog:
		d = t.checkSlidingLog(key, rule, now)
	default:
		d = t.checkFixedWindow(key, rule, now)
	}
	t.mu.Unlock()

	d.Category = category
	d.Identifier = identifier
	d.Limit = rule.MaxRequests
	if !d.Allowed {
		d.Remaining = 0
		if d.ResetIn < minDeniedResetIn {
			d.ResetIn = minDeniedResetIn
		}
	}

	t.recorder.RecordDecision(category, d.Allowed)
	return d
}

// checkFixedWindow must be called with t.mu held.
func (t *Throttle) checkFixedWindow(key Key, rule Rule, now time.Time) Decision {
	st := t.state[key]
	if st == nil || !now.Before(st.windowStart.Add(rule.Window)) {
		st = &counterState{windowStart: now}
		t.state[key] = st
	}

	resetIn := st.windowStart.Add(rule.Window).Sub(now)
	if st.count >= rule.MaxRequests {
		return Decision{Allowed: false, ResetIn: resetIn}
	}

	st.count++
	return Decision{
		Allowed:   true,
		Remaining: rule.MaxRequests - st.count,
		ResetIn:   resetIn,
	}
}

// checkSlidingLog must be called with t.mu held.
func (t *Throttle) checkSlidingLog(key Key, rule Rule, now time.Time) Decision {
	st := t.state[key]
	if st == nil {
		st = &counterState{}
		t.state[key] = st
	}

	if now.Before(st.blockedUntil) {
		return Decision{Allowed: false, ResetIn: st.blockedUntil.Sub(now)}
	}
	if !st.blockedUntil.IsZero() {
		st.blockedUntil = time.Time{}
		st.timestamps = st.timestamps[:0]
	}

	st.timestamps = pruneLog(st.timestamps, now.Add(-rule.Window))

	if len(st.timestamps) >= rule.MaxRequests {
		if rule.Lockout > 0 {
			st.blockedUntil = now.Add(rule.Lockout)
			return Decision{Allowed: false, ResetIn: rule.Lockout}
		}
		return Decision{Allowed: false, ResetIn: logResetIn(st.timestamps, rule.Window, now)}
	}

	st.timestamps = append(st.timestamps, now)
	return Decision{
		Allowed:   true,
		Remaining: rule.MaxRequests - len(st.timestamps),
		ResetIn:   logResetIn(st.timestamps, rule.Window, now),
	}
}

// pruneLog drops timestamps at or before cutoff. The log is kept in
// ascending order so the first survivor bounds the rest.
func pruneLog(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return log
	}
	n := copy(log, log[i:])
	return log[:n]
}

func logResetIn(log []time.Time, window time.Duration, now time.Time) time.Duration {
	if len(log) == 0 {
		return 0
	}
	return log[0].Add(window).Sub(now)
}

// Status reports the state of a key without modifying it. An unseen key
// reports the full quota. It panics with *ConfigurationError if the
// category is not configured.
func (t *Throttle) Status(key Key) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	rule, ok := t.rules[key.Category]
	if !ok {
		panic(&ConfigurationError{Category: key.Category})
	}

	now := t.now()
	st := t.state[key]

	var s Status
	switch rule.policy() {
	case PolicySlidingLog:
		s = slidingLogStatus(st, rule, now)
	default:
		s = fixedWindowStatus(st, rule, now)
	}
	if s.RequestsRemaining <= 0 {
		s.RequestsRemaining = 0
		s.IsBlocked = true
	}
	return s
}

func fixedWindowStatus(st *counterState, rule Rule, now time.Time) Status {
	if st == nil || !now.Before(st.windowStart.Add(rule.Window)) {
		return Status{RequestsRemaining: rule.MaxRequests}
	}
	return Status{
		RequestsRemaining: rule.MaxRequests - st.count,
		ResetIn:           st.windowStart.Add(rule.Window).Sub(now),
	}
}

func slidingLogStatus(st *counterState, rule Rule, now time.Time) Status {
	if st == nil {
		return Status{RequestsRemaining: rule.MaxRequests}
	}
	if now.Before(st.blockedUntil) {
		return Status{IsBlocked: true, ResetIn: st.blockedUntil.Sub(now)}
	}
	if !st.blockedUntil.IsZero() {
		return Status{RequestsRemaining: rule.MaxRequests}
	}

	cutoff := now.Add(-rule.Window)
	live := 0
	var oldest time.Time
	for _, ts := range st.timestamps {
		if ts.After(cutoff) {
			if live == 0 {
				oldest = ts
			}
			live++
		}
	}
	if live == 0 {
		return Status{RequestsRemaining: rule.MaxRequests}
	}
	return Status{
		RequestsRemaining: rule.MaxRequests - live,
		ResetIn:           oldest.Add(rule.Window).Sub(now),
	}
}

// Sweep evicts every key whose window and lockout have fully elapsed.
// The expiry test and the delete happen under the same lock, so a key
// touched by a concurrent Check is never evicted.
func (t *Throttle) Sweep() int {
	t.mu.Lock()
	now := t.now()
	evicted := 0
	for key, st := range t.state {
		rule, ok := t.rules[key.Category]
		if !ok || expired(st, rule, now) {
			delete(t.state, key)
			evicted++
		}
	}
	t.mu.Unlock()

	if evicted > 0 {
		t.recorder.RecordEvictions(evicted)
	}
	return evicted
}

func expired(st *counterState, rule Rule, now time.Time) bool {
	if now.Before(st.blockedUntil) {
		return false
	}
	if rule.policy() == PolicySlidingLog {
		cutoff := now.Add(-rule.Window)
		for _, ts := range st.timestamps {
			if ts.After(cutoff) {
				return false
			}
		}
		return true
	}
	return !now.Before(st.windowStart.Add(rule.Window))
}

// Reset clears all tracked state.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.state = make(map[Key]*counterState)
	t.mu.Unlock()
}

// SetRules replaces the rule table. State of categories that keep a rule
// is preserved; keys of removed categories are dropped.
func (t *Throttle) SetRules(rules map[Category]Rule) error {
	if err := ValidateRules(rules); err != nil {
		return fmt.Errorf("invalid throttle rules: %w", err)
	}

	next := cloneRules(rules)

	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.state {
		newRule, ok := next[key.Category]
		if !ok {
			delete(t.state, key)
			continue
		}
		if newRule.policy() != t.rules[key.Category].policy() {
			// Counters of one policy mean nothing to the other.
			delete(t.state, key)
		}
	}
	t.rules = next
	return nil
}

// Rules returns a copy of the rule table.
func (t *Throttle) Rules() map[Category]Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneRules(t.rules)
}

// Rule returns the rule of a category.
func (t *Throttle) Rule(category Category) (Rule, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rules[category]
	return r, ok
}

// Lookup returns the rule of a category, or a *ConfigurationError.
func (t *Throttle) Lookup(category Category) (Rule, error) {
	if r, ok := t.Rule(category); ok {
		return r, nil
	}
	return Rule{}, &ConfigurationError{Category: category}
}

// Len returns the number of tracked keys.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.state)
}
