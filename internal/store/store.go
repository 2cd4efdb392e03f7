// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package store defines the persistence gateway: idempotent upserts and
// reads for every synced entity, plus the rule table and tenant registry.
//
// Two implementations exist: SQLite (production) and an in-memory store
// used by tests. Both honor the same contract: upserts are keyed by
// (tenant, id) and replaying the same batch leaves the store unchanged.
package store

import (
	"context"
	"errors"

	"github.com/leadleague/leadleague/internal/models"
)

// ErrNotFound is returned for reads that match nothing.
var ErrNotFound = errors.New("store: not found")

// Gateway is the persistence contract the sync coordinator and the HTTP
// surface depend on.
type Gateway interface {
	UpsertBrokers(ctx context.Context, tenantID string, brokers []models.Broker) error
	UpsertLeads(ctx context.Context, tenantID string, leads []models.Lead) error
	UpsertActivities(ctx context.Context, tenantID string, activities []models.Activity) error
	UpsertScores(ctx context.Context, tenantID string, scores []models.ScoreRecord) error

	Brokers(ctx context.Context, tenantID string) ([]models.Broker, error)
	Leads(ctx context.Context, tenantID string) ([]models.Lead, error)
	Activities(ctx context.Context, tenantID string) ([]models.Activity, error)
	Scores(ctx context.Context, tenantID string) ([]models.ScoreRecord, error)

	Rules(ctx context.Context) ([]models.Rule, error)
	UpsertRules(ctx context.Context, rules []models.Rule) error

	TenantConfigs(ctx context.Context) ([]models.TenantConfig, error)
	UpsertTenantConfig(ctx context.Context, cfg models.TenantConfig) error

	Close() error
}
