// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package ratelimit implements the client-side request budget for the CRM
// provider: at most R requests inside any rolling one-second window. A fresh
// window admits its full budget immediately; once the window saturates,
// blocked waiters are additionally spaced at least 1/R apart so they drain
// evenly instead of in lockstep. One Limiter is shared by every component
// holding the same credential set.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBudget is the provider's documented per-second request allowance,
// minus headroom for webhook-triggered traffic.
const DefaultBudget = 7

// Limiter enforces a rolling-window request budget. The zero value is not
// usable; construct with New.
type Limiter struct {
	budget int
	window time.Duration

	// spacer smooths blocked waiters to the minimum inter-request gap once
	// the window is saturated. Sends on a fresh window bypass it.
	spacer *rate.Limiter

	mu   sync.Mutex
	sent []time.Time // timestamps of the last budget sends, oldest first

	now func() time.Time
}

// New returns a limiter allowing budget requests per rolling second.
// A non-positive budget falls back to DefaultBudget.
func New(budget int) *Limiter {
	return NewWithWindow(budget, time.Second)
}

// NewWithWindow is New with a custom window size. Tests use short windows;
// production always uses one second.
func NewWithWindow(budget int, window time.Duration) *Limiter {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		budget: budget,
		window: window,
		spacer: rate.NewLimiter(rate.Every(window/time.Duration(budget)), 1),
		sent:   make([]time.Time, 0, budget),
		now:    time.Now,
	}
}

// Acquire blocks until a request may be issued without exceeding the budget,
// then records the send. A window with headroom admits the send immediately;
// a full window sleeps until the oldest entry ages out and then enforces the
// minimum spacing before re-checking. Returns the context error if ctx is
// canceled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.evict(now)
		if len(l.sent) < l.budget {
			l.sent = append(l.sent, now)
			l.mu.Unlock()
			return nil
		}
		// Window full: the oldest entry leaves the window first.
		wait := l.sent[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
		if err := l.spacer.Wait(ctx); err != nil {
			// rate.Limiter wraps deadline failures in its own error;
			// callers are promised the plain context error.
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
	}
}

// InFlight returns how many sends currently count against the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.sent)
}

// Budget returns the configured window budget.
func (l *Limiter) Budget() int {
	return l.budget
}

// evict drops timestamps that have aged out of the window.
// Caller must hold mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.sent) && !l.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.sent = append(l.sent[:0], l.sent[i:]...)
	}
}

// sleep waits for d or until ctx is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
