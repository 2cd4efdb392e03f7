// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package models

// TenantConfig identifies one synced company: its CRM account location and
// the pipeline whose leads are scored. Token is the long-lived bearer token
// for the tenant's CRM account.
type TenantConfig struct {
	ID         string `json:"id"`
	Subdomain  string `json:"subdomain"`
	BaseURL    string `json:"base_url,omitempty"`
	Token      string `json:"-"`
	PipelineID int64  `json:"pipeline_id"`
	Active     bool   `json:"active"`
}
