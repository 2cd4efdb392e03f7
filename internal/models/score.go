// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package models

import "time"

// ScoreRecord is the scoring output for one broker. Counters holds one entry
// per configured rule slug, zero-filled: a broker with no qualifying data
// still produces a complete row. The alert counters carry no points; they
// surface follow-up problems on the dashboard.
type ScoreRecord struct {
	BrokerID int64  `json:"broker_id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`

	// Total is the signed sum of counter*points across rules, clamped at
	// zero. A broker never shows a negative score.
	Total int `json:"total"`

	Counters map[string]int `json:"counters"`

	RespondedAfter18h int `json:"responded_after_18h"`
	ResponseOver12h   int `json:"response_over_12h"`
	StaleFiveDays     int `json:"stale_5d"`

	// Idle is set when the broker shows no activity within the idle window
	// during business hours.
	Idle bool `json:"idle"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewScoreRecord returns a zero-filled record for the broker with one
// counter per rule slug.
func NewScoreRecord(b Broker, slugs []string, now time.Time) ScoreRecord {
	counters := make(map[string]int, len(slugs))
	for _, s := range slugs {
		counters[s] = 0
	}
	return ScoreRecord{
		BrokerID:  b.ID,
		TenantID:  b.TenantID,
		Name:      b.Name,
		Counters:  counters,
		UpdatedAt: now,
	}
}
