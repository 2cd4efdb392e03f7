// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package models

import "time"

// LeadStatus is the canonical lifecycle state derived from the provider's
// status identifier. The provider reserves 142 for won and 143 for lost;
// everything else is in progress.
type LeadStatus string

const (
	LeadStatusWon        LeadStatus = "won"
	LeadStatusLost       LeadStatus = "lost"
	LeadStatusInProgress LeadStatus = "in_progress"
)

// Provider status identifiers with fixed meaning across all pipelines.
const (
	StatusIDWon  int64 = 142
	StatusIDLost int64 = 143
)

// StatusFromID maps a provider status identifier to the canonical state.
func StatusFromID(id int64) LeadStatus {
	switch id {
	case StatusIDWon:
		return LeadStatusWon
	case StatusIDLost:
		return LeadStatusLost
	default:
		return LeadStatusInProgress
	}
}

// Lead is a sales opportunity synced from the provider.
// UpdatedAt is never earlier than CreatedAt; normalization enforces this.
type Lead struct {
	ID          int64      `json:"id"`
	TenantID    string     `json:"tenant_id"`
	BrokerID    int64      `json:"broker_id"`
	Name        string     `json:"name"`
	ContactName string     `json:"contact_name,omitempty"`
	Value       float64    `json:"value"`
	StatusID    int64      `json:"status_id"`
	PipelineID  int64      `json:"pipeline_id"`
	Stage       string     `json:"stage,omitempty"`
	Status      LeadStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Closed reports whether the lead reached a terminal state.
func (l Lead) Closed() bool {
	return l.Status == LeadStatusWon || l.Status == LeadStatusLost
}
