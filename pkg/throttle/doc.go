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

// Package throttle provides per-action request throttling for WhatsSound.
//
// Every request is scoped by a composite key: an action category (payments,
// chat, vote, ...) and a caller-supplied identifier (user id, IP, or the empty
// string). Each category carries a Rule that selects one of two policies:
//
//   - fixed_window: a counter that restarts once the window has elapsed.
//   - sliding_log: a log of request timestamps pruned to the trailing window,
//     optionally followed by a punitive lockout once the quota is exhausted.
//
// # Basic Usage
//
//	t, err := throttle.New(throttle.DefaultRules())
//	if err != nil {
//	    return err
//	}
//	t.Start(ctx)
//	defer t.Stop()
//
//	d := t.Check(throttle.CategoryPayments, userID)
//	if !d.Allowed {
//	    return throttle.NewLimitError(d)
//	}
//
// # Configuration
//
//	throttle:
//	  sweep_interval: 5m
//	  categories:
//	    payments:
//	      max_requests: 10
//	      window: 1m
//	      policy: sliding_log
//	      lockout: 5m
//
// State is process-local and in memory. Each server process enforces its own
// quota.
package throttle
