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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_LimitError(t *testing.T) {
	th, clock := newTestThrottle(t, DefaultRules())

	require.NoError(t, th.PasswordReset("u"))
	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, th.PasswordReset("u"))

	err := th.PasswordReset("u")
	require.Error(t, err)
	assert.True(t, IsLimitError(err))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "too many requests, retry in 59 seconds", err.Error())

	d, ok := DecisionFromError(err)
	require.True(t, ok)
	assert.Equal(t, CategoryPasswordReset, d.Category)
	assert.Equal(t, int64(59), d.RetryAfterSeconds())
}

func TestGuards_UseTheirCategory(t *testing.T) {
	guards := map[Category]func(*Throttle, string) error{
		CategoryLogin:         (*Throttle).Login,
		CategorySignup:        (*Throttle).Signup,
		CategoryPasswordReset: (*Throttle).PasswordReset,
		CategoryVote:          (*Throttle).Vote,
		CategoryRequestSong:   (*Throttle).RequestSong,
		CategorySendMessage:   (*Throttle).SendMessage,
		CategoryPayments:      (*Throttle).Payment,
		CategoryGoldenBoost:   (*Throttle).GoldenBoost,
		CategoryChat:          (*Throttle).Chat,
		CategoryReactions:     (*Throttle).Reaction,
		CategoryAPI:           (*Throttle).API,
	}

	for c, guard := range guards {
		th, _ := newTestThrottle(t, DefaultRules())
		require.NoError(t, guard(th, "u"), c)

		s := th.Status(Key{Category: c, Identifier: "u"})
		rule, _ := th.Rule(c)
		assert.Equal(t, rule.MaxRequests-1, s.RequestsRemaining, c)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, int64(1), Decision{ResetIn: time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, int64(1), Decision{ResetIn: 0}.RetryAfterSeconds())
	assert.Equal(t, int64(0), Decision{Allowed: true}.RetryAfterSeconds())
	assert.Equal(t, int64(60), Decision{ResetIn: time.Minute}.RetryAfterSeconds())
	assert.Equal(t, int64(61), Decision{ResetIn: time.Minute + time.Nanosecond}.RetryAfterSeconds())
}

func TestStartStop(t *testing.T) {
	clock := newFakeClock()
	th, err := New(DefaultRules(), WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	require.NoError(t, err)

	th.Check(CategoryChat, "u")
	clock.Advance(time.Minute)

	th.Start(context.Background())
	th.Start(context.Background())

	require.Eventually(t, func() bool { return th.Len() == 0 }, time.Second, 5*time.Millisecond)

	th.Stop()
	th.Stop()
}

func TestRun_StopsOnCancel(t *testing.T) {
	th, err := New(DefaultRules(), WithSweepInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- th.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMiddleware(t *testing.T) {
	th, _ := newTestThrottle(t, map[Category]Rule{
		CategoryAPI: {MaxRequests: 2, Window: time.Minute},
	})

	var seen Decision
	handler := Middleware(MiddlewareConfig{
		Throttle:      th,
		ExcludedPaths: []string{"/health"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = DecisionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/v1/x")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "10.0.0.1", seen.Identifier)

	assert.Equal(t, http.StatusOK, do("/v1/x").Code)

	rec = do("/v1/x")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body LimitedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body.Error.Code)
	assert.Equal(t, "too many requests, retry in 60 seconds", body.Error.Message)
	assert.Equal(t, int64(60), body.RetryAfterSeconds)
	assert.Equal(t, CategoryAPI, body.Category)

	assert.Equal(t, http.StatusOK, do("/health").Code)
}

func TestDefaultIdentifierFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	assert.Equal(t, "192.168.1.5", DefaultIdentifierFunc(req))

	req.Header.Set("X-User-ID", "user-42")
	assert.Equal(t, "user-42", DefaultIdentifierFunc(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", DefaultIdentifierFunc(req))
}
