// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/leadleague/config.yaml",
	"/etc/leadleague/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are applied first, then
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Store: StoreConfig{
			Path: "/data/leadleague.db",
		},
		CRM: CRMConfig{
			RequestBudget:   7,
			PageLimit:       250,
			MaxPages:        50,
			EmptyPageStreak: 2,
			EventLookback:   30 * 24 * time.Hour,
			ChunkSize:       5,
			Workers:         2,
			Timeout:         30 * time.Second,
			Timezone:        "America/Sao_Paulo",
		},
		Sync: SyncConfig{
			CycleInterval: 90 * time.Minute,
			Staleness:     30 * time.Minute,
			Inactivity:    4 * time.Hour,
		},
		Scoring: ScoringConfig{
			IdleWindow: 3 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// LOG_LEVEL -> logging.level, CRM_REQUEST_BUDGET -> crm.request_budget
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// noise never reaches the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit_requests",
		"rate_limit_window":   "server.rate_limit_window",

		// Store
		"db_path": "store.path",

		// CRM client
		"crm_request_budget":    "crm.request_budget",
		"crm_page_limit":        "crm.page_limit",
		"crm_max_pages":         "crm.max_pages",
		"crm_empty_page_streak": "crm.empty_page_streak",
		"crm_event_lookback":    "crm.event_lookback",
		"crm_chunk_size":        "crm.chunk_size",
		"crm_workers":           "crm.workers",
		"crm_timeout":           "crm.timeout",
		"crm_timezone":          "crm.timezone",

		// Sync cycle
		"sync_cycle_interval": "sync.cycle_interval",
		"sync_staleness":      "sync.staleness",
		"sync_inactivity":     "sync.inactivity",

		// Scoring
		"scoring_idle_window": "scoring.idle_window",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
