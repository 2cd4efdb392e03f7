// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"testing"
	"time"
)

func TestBackoffDelayMonotone(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := backoffDelay(attempt)
		if d < prev {
			t.Errorf("backoffDelay(%d) = %v, less than previous %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoffDelayValues(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
		{7, 256 * time.Second},
		{8, 300 * time.Second},
		{20, 300 * time.Second},
		{-1, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWithJitterBounds(t *testing.T) {
	base := 10 * time.Second
	low := time.Duration(float64(base) * (1 - backoffJitter))
	high := time.Duration(float64(base) * (1 + backoffJitter))

	for i := 0; i < 200; i++ {
		d := withJitter(base)
		if d < low || d > high {
			t.Fatalf("withJitter(%v) = %v, outside [%v, %v]", base, d, low, high)
		}
	}

	if withJitter(0) != 0 {
		t.Error("withJitter(0) should be 0")
	}
}

func TestBackoffTrackerEscalation(t *testing.T) {
	b := newBackoffTracker()
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	// Consecutive errors inside the window escalate.
	first := b.next()
	second := b.next()
	if second < time.Duration(float64(first)*1.5) {
		t.Errorf("second delay %v did not escalate over first %v", second, first)
	}
	if got := b.attempts(); got != 2 {
		t.Errorf("attempts() = %d, want 2", got)
	}

	// Past the window the streak resets.
	now = now.Add(errorWindow + time.Minute)
	reset := b.next()
	maxFirst := time.Duration(float64(backoffBase) * (1 + backoffJitter))
	if reset > maxFirst {
		t.Errorf("delay after window %v, want <= %v (reset to base)", reset, maxFirst)
	}
}

func TestBackoffTrackerReset(t *testing.T) {
	b := newBackoffTracker()
	b.next()
	b.next()
	b.reset()
	if got := b.attempts(); got != 0 {
		t.Errorf("attempts() after reset = %d, want 0", got)
	}
}
