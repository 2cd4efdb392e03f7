// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package config loads the LeadLeague configuration with layered sources:
// struct defaults, then an optional YAML file, then environment variables.
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds the full application configuration.
type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Store   StoreConfig    `koanf:"store"`
	CRM     CRMConfig      `koanf:"crm"`
	Sync    SyncConfig     `koanf:"sync"`
	Scoring ScoringConfig  `koanf:"scoring"`
	Logging LoggingConfig  `koanf:"logging"`
	Tenants []TenantConfig `koanf:"tenants" validate:"dive"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimitReqs   int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig holds the SQLite settings.
type StoreConfig struct {
	// Path is the database file. The literal ":memory:" runs without a file.
	Path string `koanf:"path" validate:"required"`
}

// CRMConfig tunes the provider client shared by every tenant.
type CRMConfig struct {
	// RequestBudget is the number of requests allowed per rolling second.
	RequestBudget int `koanf:"request_budget" validate:"gte=1"`

	PageLimit       int           `koanf:"page_limit" validate:"gte=1,lte=250"`
	MaxPages        int           `koanf:"max_pages" validate:"gte=1"`
	EmptyPageStreak int           `koanf:"empty_page_streak" validate:"gte=1"`
	EventLookback   time.Duration `koanf:"event_lookback" validate:"gt=0"`
	ChunkSize       int           `koanf:"chunk_size" validate:"gte=1"`
	Workers         int           `koanf:"workers" validate:"gte=1"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`

	// Timezone is the IANA name used to normalize provider timestamps.
	Timezone string `koanf:"timezone" validate:"required"`
}

// SyncConfig tunes the tenant cycle loop.
type SyncConfig struct {
	CycleInterval time.Duration `koanf:"cycle_interval" validate:"gt=0"`
	Staleness     time.Duration `koanf:"staleness" validate:"gt=0"`
	Inactivity    time.Duration `koanf:"inactivity" validate:"gt=0"`
}

// ScoringConfig tunes the scoring pass.
type ScoringConfig struct {
	// IdleWindow is how long a broker may go without activity during
	// business hours before the idle flag raises.
	IdleWindow time.Duration `koanf:"idle_window" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// TenantConfig registers one CRM account. File-configured tenants are
// upserted into the store registry at startup; the registry is the source
// of truth afterwards.
type TenantConfig struct {
	ID         string `koanf:"id" validate:"required"`
	Subdomain  string `koanf:"subdomain"`
	BaseURL    string `koanf:"base_url" validate:"omitempty,url"`
	Token      string `koanf:"token"`
	PipelineID int64  `koanf:"pipeline_id"`
	Active     bool   `koanf:"active"`
}
