// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package models defines the domain types shared by the CRM client, the sync
// coordinator, the scoring engine, and the persistence layer.
//
// All timestamps are timezone-aware (time.Time carrying the tenant's
// configured location). Identifier zero values mean "absent": a Lead with
// BrokerID == 0 is unassigned, an Activity with LeadID == 0 is not tied to
// any lead.
package models

import "time"

// Role classifies a CRM user account. Only agents participate in scoring.
type Role string

const (
	// RoleAgent marks a scoring-eligible broker account.
	RoleAgent Role = "Corretor"

	// RoleAdmin marks an administrative account, excluded from scoring.
	RoleAdmin Role = "Administrador"
)

// Broker is a CRM user account synced from the provider.
type Broker struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAgent reports whether the broker participates in scoring.
func (b Broker) IsAgent() bool {
	return b.Role == RoleAgent
}
