// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/leadleague/leadleague/internal/models"
)

// Memory is the in-memory Gateway. It is the reference implementation for
// the upsert contract and the store used throughout the tests.
type Memory struct {
	mu         sync.RWMutex
	brokers    map[string]map[int64]models.Broker
	leads      map[string]map[int64]models.Lead
	activities map[string]map[int64]models.Activity
	scores     map[string]map[int64]models.ScoreRecord
	rules      map[int64]models.Rule
	tenants    map[string]models.TenantConfig
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		brokers:    make(map[string]map[int64]models.Broker),
		leads:      make(map[string]map[int64]models.Lead),
		activities: make(map[string]map[int64]models.Activity),
		scores:     make(map[string]map[int64]models.ScoreRecord),
		rules:      make(map[int64]models.Rule),
		tenants:    make(map[string]models.TenantConfig),
	}
}

func (m *Memory) UpsertBrokers(_ context.Context, tenantID string, brokers []models.Broker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.brokers[tenantID] == nil {
		m.brokers[tenantID] = make(map[int64]models.Broker)
	}
	for _, b := range brokers {
		b.TenantID = tenantID
		m.brokers[tenantID][b.ID] = b
	}
	return nil
}

func (m *Memory) UpsertLeads(_ context.Context, tenantID string, leads []models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leads[tenantID] == nil {
		m.leads[tenantID] = make(map[int64]models.Lead)
	}
	for _, l := range leads {
		l.TenantID = tenantID
		m.leads[tenantID][l.ID] = l
	}
	return nil
}

func (m *Memory) UpsertActivities(_ context.Context, tenantID string, activities []models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activities[tenantID] == nil {
		m.activities[tenantID] = make(map[int64]models.Activity)
	}
	for _, a := range activities {
		a.TenantID = tenantID
		m.activities[tenantID][a.ID] = a
	}
	return nil
}

func (m *Memory) UpsertScores(_ context.Context, tenantID string, scores []models.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scores[tenantID] == nil {
		m.scores[tenantID] = make(map[int64]models.ScoreRecord)
	}
	for _, s := range scores {
		s.TenantID = tenantID
		m.scores[tenantID][s.BrokerID] = s
	}
	return nil
}

func (m *Memory) Brokers(_ context.Context, tenantID string) ([]models.Broker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Broker, 0, len(m.brokers[tenantID]))
	for _, b := range m.brokers[tenantID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Leads(_ context.Context, tenantID string) ([]models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Lead, 0, len(m.leads[tenantID]))
	for _, l := range m.leads[tenantID] {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Activities(_ context.Context, tenantID string) ([]models.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Activity, 0, len(m.activities[tenantID]))
	for _, a := range m.activities[tenantID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Scores(_ context.Context, tenantID string) ([]models.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ScoreRecord, 0, len(m.scores[tenantID]))
	for _, s := range m.scores[tenantID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrokerID < out[j].BrokerID })
	return out, nil
}

func (m *Memory) Rules(_ context.Context) ([]models.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpsertRules(_ context.Context, rules []models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rules {
		if r.Slug == "" {
			r.Slug = models.SlugFromName(r.Name)
		}
		m.rules[r.ID] = r
	}
	return nil
}

func (m *Memory) TenantConfigs(_ context.Context) ([]models.TenantConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.TenantConfig, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpsertTenantConfig(_ context.Context, cfg models.TenantConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[cfg.ID] = cfg
	return nil
}

func (m *Memory) Close() error {
	return nil
}
