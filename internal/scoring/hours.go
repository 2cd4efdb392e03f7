// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package scoring

import (
	"time"

	"github.com/leadleague/leadleague/internal/models"
)

// Business hours: two blocks on weekdays, minutes since midnight.
const (
	morningStart   = 8*60 + 30  // 08:30
	morningEnd     = 12 * 60    // 12:00
	afternoonStart = 13*60 + 30 // 13:30
	afternoonEnd   = 18 * 60    // 18:00
)

// inBusinessHours reports whether t falls inside a weekday working block.
func inBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return (m >= morningStart && m < morningEnd) || (m >= afternoonStart && m < afternoonEnd)
}

// isIdle flags a broker with no activity inside the idle window, evaluated
// only during business hours: outside them nobody is expected to work, so
// nobody is idle.
func isIdle(b models.Broker, idx *indexes, opts Options) bool {
	if !inBusinessHours(opts.Now) {
		return false
	}
	acts := idx.activitiesByBroker[b.ID]
	if len(acts) == 0 {
		return true
	}
	last := acts[len(acts)-1].CreatedAt
	return opts.Now.Sub(last) > opts.IdleWindow
}
