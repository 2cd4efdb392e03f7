// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leadleague/leadleague/internal/models"
)

// gateways runs the contract tests against every implementation.
func gateways(t *testing.T) map[string]Gateway {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Gateway{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestUpsertBrokersIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			brokers := []models.Broker{
				{ID: 1, Name: "Ana", Email: "ana@acme.com", Role: models.RoleAgent},
				{ID: 2, Name: "Bia", Email: "bia@acme.com", Role: models.RoleAdmin},
			}
			if err := g.UpsertBrokers(ctx, "acme", brokers); err != nil {
				t.Fatalf("UpsertBrokers: %v", err)
			}
			// Replay with one change.
			brokers[0].Name = "Ana Paula"
			if err := g.UpsertBrokers(ctx, "acme", brokers); err != nil {
				t.Fatalf("replay: %v", err)
			}

			got, err := g.Brokers(ctx, "acme")
			if err != nil {
				t.Fatalf("Brokers: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d brokers, want 2 (replay must not duplicate)", len(got))
			}
			if got[0].Name != "Ana Paula" {
				t.Errorf("Name = %q, want updated Ana Paula", got[0].Name)
			}
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			if err := g.UpsertLeads(ctx, "acme", []models.Lead{{ID: 1, Name: "A"}}); err != nil {
				t.Fatalf("UpsertLeads acme: %v", err)
			}
			if err := g.UpsertLeads(ctx, "globex", []models.Lead{{ID: 1, Name: "G"}, {ID: 2, Name: "G2"}}); err != nil {
				t.Fatalf("UpsertLeads globex: %v", err)
			}

			acme, _ := g.Leads(ctx, "acme")
			globex, _ := g.Leads(ctx, "globex")
			if len(acme) != 1 || len(globex) != 2 {
				t.Errorf("isolation broken: acme=%d globex=%d", len(acme), len(globex))
			}
			if acme[0].Name != "A" {
				t.Errorf("cross-tenant overwrite: %q", acme[0].Name)
			}
		})
	}
}

func TestScoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			rec := models.ScoreRecord{
				BrokerID:          7,
				Name:              "Ana",
				Total:             42,
				Counters:          map[string]int{"leads_visitados": 3, "vendas_realizadas": 2},
				RespondedAfter18h: 1,
				ResponseOver12h:   2,
				StaleFiveDays:     3,
				Idle:              true,
				UpdatedAt:         now,
			}
			if err := g.UpsertScores(ctx, "acme", []models.ScoreRecord{rec}); err != nil {
				t.Fatalf("UpsertScores: %v", err)
			}

			got, err := g.Scores(ctx, "acme")
			if err != nil {
				t.Fatalf("Scores: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d scores, want 1", len(got))
			}
			s := got[0]
			if s.Total != 42 || !s.Idle || s.StaleFiveDays != 3 {
				t.Errorf("fields lost in round trip: %+v", s)
			}
			if s.Counters["leads_visitados"] != 3 {
				t.Errorf("counter lost: %v", s.Counters)
			}
			if !s.UpdatedAt.Equal(now) {
				t.Errorf("UpdatedAt = %v, want %v", s.UpdatedAt, now)
			}
		})
	}
}

func TestRulesDeriveSlug(t *testing.T) {
	ctx := context.Background()
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			rules := []models.Rule{
				{ID: 1, Name: "Leads Visitados", Points: 5, Active: true},
				{ID: 2, Name: "Vendas Realizadas", Slug: "vendas_realizadas", Points: 15, Active: true},
			}
			if err := g.UpsertRules(ctx, rules); err != nil {
				t.Fatalf("UpsertRules: %v", err)
			}

			got, err := g.Rules(ctx)
			if err != nil {
				t.Fatalf("Rules: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d rules, want 2", len(got))
			}
			if got[0].Slug != "leads_visitados" {
				t.Errorf("missing slug should be derived, got %q", got[0].Slug)
			}
		})
	}
}

func TestTenantConfigsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			cfg := models.TenantConfig{
				ID: "acme", Subdomain: "acme", BaseURL: "https://acme.kommo.com",
				Token: "secret", PipelineID: 7, Active: true,
			}
			if err := g.UpsertTenantConfig(ctx, cfg); err != nil {
				t.Fatalf("UpsertTenantConfig: %v", err)
			}
			// Update in place.
			cfg.PipelineID = 9
			if err := g.UpsertTenantConfig(ctx, cfg); err != nil {
				t.Fatalf("update: %v", err)
			}

			got, err := g.TenantConfigs(ctx)
			if err != nil {
				t.Fatalf("TenantConfigs: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d tenants, want 1", len(got))
			}
			if got[0].PipelineID != 9 || got[0].Token != "secret" {
				t.Errorf("round trip lost fields: %+v", got[0])
			}
		})
	}
}

func TestActivitiesRoundTrip(t *testing.T) {
	ctx := context.Background()
	loc := time.UTC
	created := time.Date(2026, 8, 24, 15, 0, 0, 0, loc)
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			a := models.NewActivity(11, 100, 7, models.ActivityStatusChange, "Novo", "Visita Agendada", created)
			if err := g.UpsertActivities(ctx, "acme", []models.Activity{a}); err != nil {
				t.Fatalf("UpsertActivities: %v", err)
			}

			got, err := g.Activities(ctx, "acme")
			if err != nil {
				t.Fatalf("Activities: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d activities, want 1", len(got))
			}
			if got[0].Type != models.ActivityStatusChange || got[0].NewValue != "Visita Agendada" {
				t.Errorf("round trip lost fields: %+v", got[0])
			}
			if got[0].DayOfWeek != time.Monday || got[0].Hour != 15 {
				t.Errorf("derived fields lost: dow=%v hour=%d", got[0].DayOfWeek, got[0].Hour)
			}
		})
	}
}
