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
	"time"
)

// Start launches the janitor goroutine that calls Sweep every sweep
// interval until ctx is cancelled or Stop is called. Calling Start on a
// running Throttle is a no-op.
func (t *Throttle) Start(ctx context.Context) {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	if t.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.runJanitor(ctx, t.done)
}

// Stop halts the janitor and waits for it to exit. It is idempotent.
func (t *Throttle) Stop() {
	t.lifecycleMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run starts the janitor and blocks until ctx is cancelled.
// It fits an errgroup alongside the HTTP server.
func (t *Throttle) Run(ctx context.Context) error {
	t.Start(ctx)
	<-ctx.Done()
	t.Stop()
	return nil
}

func (t *Throttle) runJanitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	t.logger.Debug("Throttle janitor started", "interval", t.sweepInterval)

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Throttle janitor stopped")
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				t.logger.Debug("Throttle sweep evicted keys", "evicted", n, "tracked", t.Len())
			}
		}
	}
}
