/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package view

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of triggers into one callback, delivered
// through post after the quiet interval. Trigger is safe from any goroutine;
// the callback always runs on the post goroutine.
type debouncer struct {
	interval time.Duration
	post     func(func())
	fn       func()

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(interval time.Duration, post func(func()), fn func()) *debouncer {
	return &debouncer{interval: interval, post: post, fn: fn}
}

// Trigger arms or re-arms the timer.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.post(d.fn)
	})
}

// Flush cancels a pending trigger and runs the callback synchronously.
// Caller must be on the post goroutine.
func (d *debouncer) Flush() {
	d.mu.Lock()
	armed := d.timer != nil
	if armed {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	if armed {
		d.fn()
	}
}

// Stop discards any pending trigger.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
