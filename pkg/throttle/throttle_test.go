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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestThrottle(t *testing.T, rules map[Category]Rule) (*Throttle, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	th, err := New(rules, WithClock(clock.Now))
	require.NoError(t, err)
	return th, clock
}

func TestThrottle_QuotaEnforcement(t *testing.T) {
	for _, c := range SortedCategories(DefaultRules()) {
		t.Run(string(c), func(t *testing.T) {
			th, _ := newTestThrottle(t, DefaultRules())
			rule, _ := th.Rule(c)

			for i := 0; i < rule.MaxRequests; i++ {
				d := th.Check(c, "user-1")
				require.True(t, d.Allowed, "call %d", i+1)
				assert.Equal(t, rule.MaxRequests-i-1, d.Remaining)
			}

			d := th.Check(c, "user-1")
			assert.False(t, d.Allowed)
			assert.Equal(t, 0, d.Remaining)
			assert.Greater(t, d.ResetIn, time.Duration(0))
		})
	}
}

func TestThrottle_LoginScenario(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())

	for want := 4; want >= 0; want-- {
		d := th.Check(CategoryLogin, "u1")
		require.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
		assert.LessOrEqual(t, d.ResetIn, time.Minute)
		clock.Advance(time.Second)
	}

	d := th.Check(CategoryLogin, "u1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.ResetIn, time.Duration(0))
	assert.LessOrEqual(t, d.ResetIn, time.Minute)
	assert.Equal(t, 55*time.Second, d.ResetIn)
	assert.Equal(t, CategoryLogin, d.Category)
	assert.Equal(t, "u1", d.Identifier)
	assert.Equal(t, 5, d.Limit)
}

func TestThrottle_IndependentSubjects(t *testing.T) {
	th, _ := newTestThrottle(t, DefaultRules())

	for i := 0; i < 11; i++ {
		th.Check(CategoryPayments, "user-A")
	}
	assert.False(t, th.Check(CategoryPayments, "user-A").Allowed)

	d := th.Check(CategoryPayments, "user-B")
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining)
}

func TestThrottle_IndependentCategories(t *testing.T) {
	th, _ := newTestThrottle(t, DefaultRules())

	for i := 0; i < 11; i++ {
		th.Check(CategoryPayments, "user-X")
	}
	assert.False(t, th.Check(CategoryPayments, "user-X").Allowed)

	d := th.Check(CategoryChat, "user-X")
	assert.True(t, d.Allowed)
	assert.Equal(t, 59, d.Remaining)
}

func TestThrottle_FixedWindowExpiry(t *testing.T) {
	th, clock := newTestThrottle(t, map[Category]Rule{
		"test": {MaxRequests: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		require.True(t, th.Check("test", "k").Allowed)
	}
	require.False(t, th.Check("test", "k").Allowed)

	clock.Advance(time.Minute - time.Millisecond)
	assert.False(t, th.Check("test", "k").Allowed)

	clock.Advance(time.Millisecond)
	d := th.Check("test", "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, time.Minute, d.ResetIn)
}

func TestThrottle_SlidingLogLockout(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())

	for i := 0; i < 5; i++ {
		require.True(t, th.Check(CategoryGoldenBoost, "u").Allowed)
	}

	d := th.Check(CategoryGoldenBoost, "u")
	require.False(t, d.Allowed)
	assert.Equal(t, DefaultLockout, d.ResetIn)
	assert.LessOrEqual(t, d.ResetIn, 5*time.Minute)

	// The window elapsing does not lift the lockout.
	clock.Advance(2 * time.Minute)
	d = th.Check(CategoryGoldenBoost, "u")
	assert.False(t, d.Allowed)
	assert.Equal(t, 3*time.Minute, d.ResetIn)

	clock.Advance(3 * time.Minute)
	d = th.Check(CategoryGoldenBoost, "u")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestThrottle_SlidingLogWithoutLockout(t *testing.T) {
	th, clock := newTestThrottle(t, map[Category]Rule{
		"smooth": {MaxRequests: 2, Window: 10 * time.Second, Policy: PolicySlidingLog},
	})

	require.True(t, th.Check("smooth", "k").Allowed)
	clock.Advance(4 * time.Second)
	require.True(t, th.Check("smooth", "k").Allowed)

	d := th.Check("smooth", "k")
	assert.False(t, d.Allowed)
	assert.Equal(t, 6*time.Second, d.ResetIn)

	// Only the first request leaves the trailing window.
	clock.Advance(6 * time.Second)
	d = th.Check("smooth", "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 4*time.Second, d.ResetIn)
}

func TestThrottle_EdgeCases(t *testing.T) {
	t.Run("max zero denies first call", func(t *testing.T) {
		for _, p := range []Policy{PolicyFixedWindow, PolicySlidingLog} {
			th, _ := newTestThrottle(t, map[Category]Rule{
				"none": {MaxRequests: 0, Window: time.Minute, Policy: p},
			})
			d := th.Check("none", "k")
			assert.False(t, d.Allowed, p)
			assert.Equal(t, 0, d.Remaining)
			assert.Greater(t, d.ResetIn, time.Duration(0))
		}
	})

	t.Run("window zero always admits", func(t *testing.T) {
		for _, p := range []Policy{PolicyFixedWindow, PolicySlidingLog} {
			th, _ := newTestThrottle(t, map[Category]Rule{
				"open": {MaxRequests: 2, Window: 0, Policy: p},
			})
			for i := 0; i < 10; i++ {
				d := th.Check("open", "k")
				require.True(t, d.Allowed, p)
				assert.Equal(t, 1, d.Remaining)
			}
		}
	})

	t.Run("empty identifier is limited", func(t *testing.T) {
		th, _ := newTestThrottle(t, DefaultRules())
		for i := 0; i < 5; i++ {
			require.True(t, th.Check(CategoryLogin, "").Allowed)
		}
		assert.False(t, th.Check(CategoryLogin, "").Allowed)
		assert.True(t, th.Check(CategoryLogin, "someone").Allowed)
	})

	t.Run("unknown category panics", func(t *testing.T) {
		th, _ := newTestThrottle(t, DefaultRules())
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			assert.True(t, errors.Is(err, ErrUnknownCategory))
		}()
		th.Check("nope", "k")
	})
}

func TestThrottle_Sweep(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())

	for i := 0; i < 5; i++ {
		th.Check(CategoryLogin, "u")
	}
	th.Check(CategoryChat, "u")
	require.Equal(t, 2, th.Len())

	assert.Equal(t, 0, th.Sweep())

	clock.Advance(time.Minute)
	assert.Equal(t, 2, th.Sweep())
	assert.Equal(t, 0, th.Len())

	d := th.Check(CategoryLogin, "u")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestThrottle_SweepKeepsLockedKeys(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())

	for i := 0; i < 11; i++ {
		th.Check(CategoryPayments, "u")
	}

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, th.Sweep())
	assert.True(t, th.Status(Key{CategoryPayments, "u"}).IsBlocked)

	clock.Advance(3 * time.Minute)
	assert.Equal(t, 1, th.Sweep())
	assert.False(t, th.Status(Key{CategoryPayments, "u"}).IsBlocked)
}

func TestThrottle_Status(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())
	key := Key{Category: CategorySignup, Identifier: "u"}

	s := th.Status(key)
	assert.Equal(t, Status{RequestsRemaining: 3}, s)
	assert.Equal(t, 0, th.Len(), "status must not create state")

	th.Check(CategorySignup, "u")
	clock.Advance(10 * time.Second)

	for i := 0; i < 3; i++ {
		s = th.Status(key)
		assert.False(t, s.IsBlocked)
		assert.Equal(t, 2, s.RequestsRemaining)
		assert.Equal(t, 50*time.Second, s.ResetIn)
	}

	th.Check(CategorySignup, "u")
	th.Check(CategorySignup, "u")
	s = th.Status(key)
	assert.True(t, s.IsBlocked)
	assert.Equal(t, 0, s.RequestsRemaining)
}

func TestThrottle_StatusSlidingLog(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())
	key := Key{Category: CategoryPayments, Identifier: "u"}

	th.Check(CategoryPayments, "u")
	clock.Advance(30 * time.Second)
	th.Check(CategoryPayments, "u")

	s := th.Status(key)
	assert.Equal(t, 8, s.RequestsRemaining)
	assert.Equal(t, 30*time.Second, s.ResetIn)

	clock.Advance(30 * time.Second)
	s = th.Status(key)
	assert.Equal(t, 9, s.RequestsRemaining)
}

func TestThrottle_Reset(t *testing.T) {
	th, _ := newTestThrottle(t, DefaultRules())
	for i := 0; i < 5; i++ {
		th.Check(CategoryLogin, "u")
	}
	th.Reset()
	assert.Equal(t, 0, th.Len())
	assert.True(t, th.Check(CategoryLogin, "u").Allowed)
}

func TestThrottle_SetRules(t *testing.T) {
	th, _ := newTestThrottle(t, DefaultRules())

	th.Check(CategoryLogin, "u")
	th.Check(CategoryVote, "u")

	rules := DefaultRules()
	delete(rules, CategoryVote)
	login := rules[CategoryLogin]
	login.MaxRequests = 2
	rules[CategoryLogin] = login
	require.NoError(t, th.SetRules(rules))

	assert.Equal(t, 1, th.Len())
	d := th.Check(CategoryLogin, "u")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	_, err := th.Lookup(CategoryVote)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	err = th.SetRules(map[Category]Rule{"bad": {MaxRequests: -1}})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "bad.max_requests", vErr.Field)
}

func TestNew_InvalidRules(t *testing.T) {
	tests := []struct {
		name  string
		rules map[Category]Rule
		field string
	}{
		{"negative window", map[Category]Rule{"a": {MaxRequests: 1, Window: -time.Second}}, "a.window"},
		{"negative lockout", map[Category]Rule{"a": {MaxRequests: 1, Lockout: -time.Second}}, "a.lockout"},
		{"unknown policy", map[Category]Rule{"a": {MaxRequests: 1, Policy: "leaky"}}, "a.policy"},
		{"empty name", map[Category]Rule{"": {MaxRequests: 1}}, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rules)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestThrottle_ConcurrentChecks(t *testing.T) {
	for _, p := range []Policy{PolicyFixedWindow, PolicySlidingLog} {
		t.Run(string(p), func(t *testing.T) {
			th, err := New(map[Category]Rule{
				"hot": {MaxRequests: 50, Window: time.Hour, Policy: p},
			})
			require.NoError(t, err)

			var admitted atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 200; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if th.Check("hot", "shared").Allowed {
						admitted.Add(1)
					}
					th.Sweep()
				}()
			}
			wg.Wait()

			assert.Equal(t, int64(50), admitted.Load())
		})
	}
}

type countingRecorder struct {
	mu        sync.Mutex
	decisions map[bool]int
	evictions int
}

func (r *countingRecorder) RecordDecision(_ Category, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decisions == nil {
		r.decisions = map[bool]int{}
	}
	r.decisions[allowed]++
}

func (r *countingRecorder) RecordEvictions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions += n
}

func TestThrottle_Recorder(t *testing.T) {
	clock := newFakeClock()
	rec := &countingRecorder{}
	th, err := New(DefaultRules(), WithClock(clock.Now), WithRecorder(rec))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		th.Check(CategoryPasswordReset, "u")
	}
	clock.Advance(time.Minute)
	th.Sweep()

	assert.Equal(t, 2, rec.decisions[true])
	assert.Equal(t, 2, rec.decisions[false])
	assert.Equal(t, 1, rec.evictions)
}
