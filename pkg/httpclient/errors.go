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
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrGaveUp is matched by every *UpstreamError.
var ErrGaveUp = errors.New("upstream request gave up")

// UpstreamError is returned alongside the last response when Do stops
// retrying: the attempt budget is spent, the strategy allows no further
// attempt, or the upstream asks for a wait longer than the maximum delay.
type UpstreamError struct {
	Method     string
	URL        string
	StatusCode int
	Attempts   int

	// RetryAfter is the wait the upstream asked for, or the backoff that
	// would have applied. Zero when none was computed.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	what := fmt.Sprintf("upstream returned %d", e.StatusCode)
	if e.Throttled() {
		what = "throttled by upstream"
	}
	attempts := "attempts"
	if e.Attempts == 1 {
		attempts = "attempt"
	}
	msg := fmt.Sprintf("%s %s: %s after %d %s", e.Method, e.URL, what, e.Attempts, attempts)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", next retry in %v", e.RetryAfter)
	}
	return msg
}

// Unwrap returns ErrGaveUp.
func (e *UpstreamError) Unwrap() error {
	return ErrGaveUp
}

// Throttled reports whether the upstream answered 429.
func (e *UpstreamError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
