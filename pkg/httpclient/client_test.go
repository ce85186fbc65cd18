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

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/whatssound/pkg/throttle"
)

func fastClient(opts ...Option) *Client {
	return New(append([]Option{WithBaseDelay(time.Millisecond)}, opts...)...)
}

// sequence responds with the given statuses in order, then 200.
func sequence(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte("ok:"), body...))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(t *testing.T, c *Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestDefaultRetryStrategy(t *testing.T) {
	tests := []struct {
		status int
		want   RetryStrategy
	}{
		{http.StatusTooManyRequests, SmartRetry},
		{http.StatusServiceUnavailable, SmartRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
		{http.StatusGatewayTimeout, ConservativeRetry},
		{http.StatusRequestTimeout, ConservativeRetry},
		{http.StatusOK, NoRetry},
		{http.StatusNotFound, NoRetry},
		{http.StatusUnauthorized, NoRetry},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultRetryStrategy(tt.status), "status %d", tt.status)
	}
}

func TestClient_Do_RetriesUntilSuccess(t *testing.T) {
	srv, calls := sequence(t, http.StatusTooManyRequests, http.StatusServiceUnavailable)

	resp, err := get(t, fastClient(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Do_NoRetry(t *testing.T) {
	srv, calls := sequence(t, http.StatusNotFound)

	resp, err := get(t, fastClient(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Do_ConservativeLimit(t *testing.T) {
	srv, calls := sequence(t, 500, 500, 500, 500)

	resp, err := get(t, fastClient(WithMaxRetries(5)), srv.URL)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	var re *UpstreamError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Equal(t, 3, re.Attempts)
	assert.False(t, re.Throttled())
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Do_MaxRetries(t *testing.T) {
	srv, calls := sequence(t, 429, 429, 429, 429)

	resp, err := get(t, fastClient(WithMaxRetries(2)), srv.URL)
	require.Error(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Do_RetryAfterBeyondMaxDelay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "300")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp, err := get(t, fastClient(WithMaxDelay(time.Second)), srv.URL)
	require.Error(t, err)
	defer resp.Body.Close()

	var re *UpstreamError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 300*time.Second, re.RetryAfter)
	assert.Equal(t, http.MethodGet+" "+srv.URL+": throttled by upstream after 1 attempt, next retry in 5m0s", re.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Do_ThrottledServer(t *testing.T) {
	th, err := throttle.New(map[throttle.Category]throttle.Rule{
		throttle.CategoryAPI: {MaxRequests: 1, Window: time.Minute},
	})
	require.NoError(t, err)

	handler := throttle.Middleware(throttle.MiddlewareConfig{Throttle: th})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	c := fastClient(WithMaxDelay(time.Second))

	resp, err := get(t, c, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = get(t, c, srv.URL)
	require.Error(t, err)
	resp.Body.Close()

	var re *UpstreamError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.True(t, re.Throttled())
	assert.Equal(t, time.Minute, re.RetryAfter)
}

func TestClient_Do_ReplaysBody(t *testing.T) {
	srv, calls := sequence(t, http.StatusBadGateway)

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	resp, err := fastClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok:payload", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Do_ContextCancelledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = New().Do(req)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestParseRateLimitHeaders(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		headers map[string]string
		want    RateLimitInfo
	}{
		{
			name: "empty",
			want: RateLimitInfo{},
		},
		{
			name:    "retry-after seconds",
			headers: map[string]string{"Retry-After": "60"},
			want:    RateLimitInfo{RetryAfter: time.Minute},
		},
		{
			name:    "retry-after http date",
			headers: map[string]string{"Retry-After": now.Add(90 * time.Second).Format(http.TimeFormat)},
			want:    RateLimitInfo{RetryAfter: 90 * time.Second},
		},
		{
			name:    "retry-after in the past",
			headers: map[string]string{"Retry-After": now.Add(-time.Minute).Format(http.TimeFormat)},
			want:    RateLimitInfo{},
		},
		{
			name: "x-ratelimit delta seconds",
			headers: map[string]string{
				"X-RateLimit-Limit":     "10",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "42",
			},
			want: RateLimitInfo{Limit: 10, Reset: 42 * time.Second},
		},
		{
			name:    "x-ratelimit unix reset",
			headers: map[string]string{"X-RateLimit-Reset": "1748779230"},
			want:    RateLimitInfo{Reset: 30 * time.Second},
		},
		{
			name:    "garbage",
			headers: map[string]string{"Retry-After": "soon", "X-RateLimit-Limit": "-3"},
			want:    RateLimitInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, parseRateLimitHeaders(h, now))
		})
	}
}

func TestUpstreamError(t *testing.T) {
	err := &UpstreamError{Method: http.MethodGet, URL: "https://idp.example/jwks", StatusCode: 503, Attempts: 3}

	assert.Equal(t, "GET https://idp.example/jwks: upstream returned 503 after 3 attempts", err.Error())
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.False(t, err.Throttled())
}
