// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package main is the LeadLeague server entry point.
//
// LeadLeague pulls brokers, leads and events out of a Kommo-style CRM for
// every registered tenant, scores each broker against the gamification
// rule table, and serves the results plus Prometheus metrics over HTTP.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env)
//  2. Logging: zerolog, configured from the logging section
//  3. Store: SQLite via modernc.org/sqlite; rules and tenants seeded
//  4. Sync runner: one coordinator per tenant behind a circuit breaker
//  5. HTTP server: webhook intake, status, scores, /metrics
//  6. Supervisor tree: suture keeps the runner and server alive
//
// Shutdown on SIGINT/SIGTERM is graceful: the supervisor cancels its
// services, the HTTP server drains for up to 10s, and the store closes.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadleague/leadleague/internal/api"
	"github.com/leadleague/leadleague/internal/config"
	"github.com/leadleague/leadleague/internal/crm"
	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/models"
	"github.com/leadleague/leadleague/internal/ratelimit"
	"github.com/leadleague/leadleague/internal/scoring"
	"github.com/leadleague/leadleague/internal/store"
	"github.com/leadleague/leadleague/internal/supervisor"
	"github.com/leadleague/leadleague/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("db_path", cfg.Store.Path).
		Str("addr", cfg.Server.Address()).
		Int("tenants", len(cfg.Tenants)).
		Msg("Starting LeadLeague")

	loc, err := time.LoadLocation(cfg.CRM.Timezone)
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.CRM.Timezone).Msg("Invalid timezone")
	}

	gw, err := store.OpenSQLite(cfg.Store.Path, loc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seed(ctx, gw, cfg); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed store")
	}

	// One shared limiter: the provider budget covers the whole process,
	// not each tenant separately.
	limiter := ratelimit.New(cfg.CRM.RequestBudget)

	factory := func(tc models.TenantConfig) (sync.Client, error) {
		client, err := crm.NewClient(crm.Config{
			BaseURL:         tc.BaseURL,
			Token:           tc.Token,
			TenantID:        tc.ID,
			PipelineID:      tc.PipelineID,
			PageLimit:       cfg.CRM.PageLimit,
			MaxPages:        cfg.CRM.MaxPages,
			EmptyPageStreak: cfg.CRM.EmptyPageStreak,
			EventLookback:   cfg.CRM.EventLookback,
			ChunkSize:       cfg.CRM.ChunkSize,
			Workers:         cfg.CRM.Workers,
			Location:        loc,
			HTTPTimeout:     cfg.CRM.Timeout,
		}, limiter)
		if err != nil {
			return nil, err
		}
		return crm.NewBreakerClient(client), nil
	}

	runner := sync.NewRunner(gw, factory, sync.RunnerConfig{
		Interval:   cfg.Sync.CycleInterval,
		Staleness:  cfg.Sync.Staleness,
		Inactivity: cfg.Sync.Inactivity,
		ScoreOpts: scoring.Options{
			Location:   loc,
			IdleWindow: cfg.Scoring.IdleWindow,
		},
	})

	server := api.NewServer(cfg.Server, gw, runner)

	tree := supervisor.NewTree(logging.Slog(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(runner)
	tree.AddAPIService(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

// seed writes the default rule table when the store has none and upserts
// every file-configured tenant into the registry.
func seed(ctx context.Context, gw store.Gateway, cfg *config.Config) error {
	rules, err := gw.Rules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		if err := gw.UpsertRules(ctx, scoring.DefaultRules); err != nil {
			return err
		}
		logging.Info().Int("rules", len(scoring.DefaultRules)).Msg("Seeded default rule table")
	}

	for _, t := range cfg.Tenants {
		baseURL := t.BaseURL
		if baseURL == "" && t.Subdomain != "" {
			baseURL = "https://" + t.Subdomain + ".kommo.com"
		}
		err := gw.UpsertTenantConfig(ctx, models.TenantConfig{
			ID:         t.ID,
			Subdomain:  t.Subdomain,
			BaseURL:    baseURL,
			Token:      t.Token,
			PipelineID: t.PipelineID,
			Active:     t.Active,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
