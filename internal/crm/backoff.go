// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// backoffBase is the delay before the first rate-limit retry.
	backoffBase = 2 * time.Second

	// backoffCap bounds the exponential growth.
	backoffCap = 300 * time.Second

	// backoffJitter is the symmetric jitter fraction applied to each delay.
	backoffJitter = 0.10

	// errorWindow is how long consecutive rate-limit errors keep
	// escalating the delay. Errors older than the window no longer count.
	errorWindow = 15 * time.Minute
)

// backoffDelay returns the un-jittered delay for the given zero-based
// attempt: base*2^attempt capped at backoffCap. Monotone non-decreasing in
// attempt.
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := backoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// withJitter spreads a delay by ±backoffJitter so synchronized workers do
// not retry in lockstep.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) * backoffJitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

// backoffTracker accumulates rate-limit errors inside a rolling window so
// repeated 429s across separate calls keep escalating instead of each call
// starting from the base delay.
type backoffTracker struct {
	mu          sync.Mutex
	errorCount  int
	windowStart time.Time

	now func() time.Time
}

func newBackoffTracker() *backoffTracker {
	return &backoffTracker{now: time.Now}
}

// next records one rate-limit error and returns the jittered delay to wait
// before the next attempt. The escalation counter resets once the window
// since the first error in the current streak has passed.
func (b *backoffTracker) next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.errorCount == 0 || now.Sub(b.windowStart) > errorWindow {
		b.errorCount = 0
		b.windowStart = now
	}
	delay := withJitter(backoffDelay(b.errorCount))
	b.errorCount++
	return delay
}

// reset clears the escalation streak after a successful request.
func (b *backoffTracker) reset() {
	b.mu.Lock()
	b.errorCount = 0
	b.mu.Unlock()
}

// attempts returns the rate-limit errors recorded in the current window.
func (b *backoffTracker) attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.errorCount > 0 && b.now().Sub(b.windowStart) > errorWindow {
		return 0
	}
	return b.errorCount
}
