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
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitInfo is what a response says about the caller's quota.
// Zero values mean the header was absent.
type RateLimitInfo struct {
	// RetryAfter is parsed from Retry-After, in seconds or as an HTTP date.
	RetryAfter time.Duration

	// Limit, Remaining and Reset come from the X-RateLimit-* headers.
	// Reset is the time until the window resets.
	Limit     int
	Remaining int
	Reset     time.Duration
}

// ParseRateLimitHeaders reads Retry-After and the X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset headers. X-RateLimit-Reset
// is read as seconds until reset; values that look like a Unix timestamp
// are converted relative to now.
func ParseRateLimitHeaders(h http.Header) RateLimitInfo {
	return parseRateLimitHeaders(h, time.Now())
}

// unixThreshold separates delta-seconds from epoch seconds in
// X-RateLimit-Reset.
const unixThreshold = 1_000_000_000

func parseRateLimitHeaders(h http.Header, now time.Time) RateLimitInfo {
	var info RateLimitInfo

	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			if secs > 0 {
				info.RetryAfter = time.Duration(secs) * time.Second
			}
		} else if at, err := http.ParseTime(v); err == nil {
			if d := at.Sub(now); d > 0 {
				info.RetryAfter = d
			}
		}
	}

	info.Limit = headerInt(h, "X-RateLimit-Limit")
	info.Remaining = headerInt(h, "X-RateLimit-Remaining")

	if reset := headerInt(h, "X-RateLimit-Reset"); reset > 0 {
		if reset >= unixThreshold {
			if d := time.Unix(int64(reset), 0).Sub(now); d > 0 {
				info.Reset = d
			}
		} else {
			info.Reset = time.Duration(reset) * time.Second
		}
	}

	return info
}

func headerInt(h http.Header, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(h.Get(name)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
