// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/leadleague/leadleague/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS brokers (
	tenant_id  TEXT    NOT NULL,
	id         INTEGER NOT NULL,
	name       TEXT    NOT NULL DEFAULT '',
	email      TEXT    NOT NULL DEFAULT '',
	role       TEXT    NOT NULL DEFAULT '',
	avatar_url TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS leads (
	tenant_id    TEXT    NOT NULL,
	id           INTEGER NOT NULL,
	broker_id    INTEGER NOT NULL DEFAULT 0,
	name         TEXT    NOT NULL DEFAULT '',
	contact_name TEXT    NOT NULL DEFAULT '',
	value        REAL    NOT NULL DEFAULT 0,
	status_id    INTEGER NOT NULL DEFAULT 0,
	pipeline_id  INTEGER NOT NULL DEFAULT 0,
	stage        TEXT    NOT NULL DEFAULT '',
	status       TEXT    NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL DEFAULT 0,
	updated_at   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_leads_broker ON leads (tenant_id, broker_id);

CREATE TABLE IF NOT EXISTS activities (
	tenant_id   TEXT    NOT NULL,
	id          INTEGER NOT NULL,
	lead_id     INTEGER NOT NULL DEFAULT 0,
	broker_id   INTEGER NOT NULL DEFAULT 0,
	type        TEXT    NOT NULL DEFAULT '',
	prev_value  TEXT    NOT NULL DEFAULT '',
	new_value   TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL DEFAULT 0,
	day_of_week INTEGER NOT NULL DEFAULT 0,
	hour        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_activities_lead ON activities (tenant_id, lead_id);
CREATE INDEX IF NOT EXISTS idx_activities_broker ON activities (tenant_id, broker_id);

CREATE TABLE IF NOT EXISTS scores (
	tenant_id           TEXT    NOT NULL,
	broker_id           INTEGER NOT NULL,
	name                TEXT    NOT NULL DEFAULT '',
	total               INTEGER NOT NULL DEFAULT 0,
	counters            TEXT    NOT NULL DEFAULT '{}',
	responded_after_18h INTEGER NOT NULL DEFAULT 0,
	response_over_12h   INTEGER NOT NULL DEFAULT 0,
	stale_5d            INTEGER NOT NULL DEFAULT 0,
	idle                INTEGER NOT NULL DEFAULT 0,
	updated_at          INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, broker_id)
);

CREATE TABLE IF NOT EXISTS rules (
	id     INTEGER PRIMARY KEY,
	name   TEXT    NOT NULL,
	slug   TEXT    NOT NULL,
	points INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS tenants (
	id          TEXT PRIMARY KEY,
	subdomain   TEXT    NOT NULL DEFAULT '',
	base_url    TEXT    NOT NULL DEFAULT '',
	token       TEXT    NOT NULL DEFAULT '',
	pipeline_id INTEGER NOT NULL DEFAULT 0,
	active      INTEGER NOT NULL DEFAULT 1
);
`

// SQLite is the production Gateway backed by modernc.org/sqlite.
type SQLite struct {
	db  *sql.DB
	loc *time.Location
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Timestamps are stored as Unix seconds and read back in loc.
func OpenSQLite(path string, loc *time.Location) (*SQLite, error) {
	if loc == nil {
		loc = time.UTC
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent tenant workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, loc: loc}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction.
func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func (s *SQLite) fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).In(s.loc)
}

func (s *SQLite) UpsertBrokers(ctx context.Context, tenantID string, brokers []models.Broker) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO brokers (tenant_id, id, name, email, role, avatar_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				name = excluded.name, email = excluded.email, role = excluded.role,
				avatar_url = excluded.avatar_url, created_at = excluded.created_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range brokers {
			if _, err := stmt.ExecContext(ctx, tenantID, b.ID, b.Name, b.Email, string(b.Role), b.AvatarURL, unix(b.CreatedAt)); err != nil {
				return fmt.Errorf("upsert broker %d: %w", b.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) UpsertLeads(ctx context.Context, tenantID string, leads []models.Lead) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO leads (tenant_id, id, broker_id, name, contact_name, value,
				status_id, pipeline_id, stage, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				broker_id = excluded.broker_id, name = excluded.name,
				contact_name = excluded.contact_name, value = excluded.value,
				status_id = excluded.status_id, pipeline_id = excluded.pipeline_id,
				stage = excluded.stage, status = excluded.status,
				created_at = excluded.created_at, updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range leads {
			if _, err := stmt.ExecContext(ctx, tenantID, l.ID, l.BrokerID, l.Name, l.ContactName, l.Value,
				l.StatusID, l.PipelineID, l.Stage, string(l.Status), unix(l.CreatedAt), unix(l.UpdatedAt)); err != nil {
				return fmt.Errorf("upsert lead %d: %w", l.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) UpsertActivities(ctx context.Context, tenantID string, activities []models.Activity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO activities (tenant_id, id, lead_id, broker_id, type,
				prev_value, new_value, created_at, day_of_week, hour)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				lead_id = excluded.lead_id, broker_id = excluded.broker_id,
				type = excluded.type, prev_value = excluded.prev_value,
				new_value = excluded.new_value, created_at = excluded.created_at,
				day_of_week = excluded.day_of_week, hour = excluded.hour`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range activities {
			if _, err := stmt.ExecContext(ctx, tenantID, a.ID, a.LeadID, a.BrokerID, string(a.Type),
				a.PrevValue, a.NewValue, unix(a.CreatedAt), int(a.DayOfWeek), a.Hour); err != nil {
				return fmt.Errorf("upsert activity %d: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) UpsertScores(ctx context.Context, tenantID string, scores []models.ScoreRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO scores (tenant_id, broker_id, name, total, counters,
				responded_after_18h, response_over_12h, stale_5d, idle, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, broker_id) DO UPDATE SET
				name = excluded.name, total = excluded.total, counters = excluded.counters,
				responded_after_18h = excluded.responded_after_18h,
				response_over_12h = excluded.response_over_12h,
				stale_5d = excluded.stale_5d, idle = excluded.idle,
				updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rec := range scores {
			counters, err := json.Marshal(rec.Counters)
			if err != nil {
				return fmt.Errorf("marshal counters for broker %d: %w", rec.BrokerID, err)
			}
			if _, err := stmt.ExecContext(ctx, tenantID, rec.BrokerID, rec.Name, rec.Total, string(counters),
				rec.RespondedAfter18h, rec.ResponseOver12h, rec.StaleFiveDays, boolToInt(rec.Idle), unix(rec.UpdatedAt)); err != nil {
				return fmt.Errorf("upsert score for broker %d: %w", rec.BrokerID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) Brokers(ctx context.Context, tenantID string) ([]models.Broker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, avatar_url, created_at
		FROM brokers WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Broker
	for rows.Next() {
		var b models.Broker
		var role string
		var created int64
		if err := rows.Scan(&b.ID, &b.Name, &b.Email, &role, &b.AvatarURL, &created); err != nil {
			return nil, err
		}
		b.TenantID = tenantID
		b.Role = models.Role(role)
		b.CreatedAt = s.fromUnix(created)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLite) Leads(ctx context.Context, tenantID string) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, broker_id, name, contact_name, value, status_id, pipeline_id,
			stage, status, created_at, updated_at
		FROM leads WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		var l models.Lead
		var status string
		var created, updated int64
		if err := rows.Scan(&l.ID, &l.BrokerID, &l.Name, &l.ContactName, &l.Value,
			&l.StatusID, &l.PipelineID, &l.Stage, &status, &created, &updated); err != nil {
			return nil, err
		}
		l.TenantID = tenantID
		l.Status = models.LeadStatus(status)
		l.CreatedAt = s.fromUnix(created)
		l.UpdatedAt = s.fromUnix(updated)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLite) Activities(ctx context.Context, tenantID string) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lead_id, broker_id, type, prev_value, new_value, created_at, day_of_week, hour
		FROM activities WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Activity
	for rows.Next() {
		var a models.Activity
		var typ string
		var created int64
		var dow int
		if err := rows.Scan(&a.ID, &a.LeadID, &a.BrokerID, &typ, &a.PrevValue, &a.NewValue, &created, &dow, &a.Hour); err != nil {
			return nil, err
		}
		a.TenantID = tenantID
		a.Type = models.ActivityType(typ)
		a.CreatedAt = s.fromUnix(created)
		a.DayOfWeek = time.Weekday(dow)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Scores(ctx context.Context, tenantID string) ([]models.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT broker_id, name, total, counters, responded_after_18h,
			response_over_12h, stale_5d, idle, updated_at
		FROM scores WHERE tenant_id = ? ORDER BY total DESC, broker_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoreRecord
	for rows.Next() {
		var rec models.ScoreRecord
		var counters string
		var idle int
		var updated int64
		if err := rows.Scan(&rec.BrokerID, &rec.Name, &rec.Total, &counters,
			&rec.RespondedAfter18h, &rec.ResponseOver12h, &rec.StaleFiveDays, &idle, &updated); err != nil {
			return nil, err
		}
		rec.TenantID = tenantID
		rec.Idle = idle != 0
		rec.UpdatedAt = s.fromUnix(updated)
		if err := json.Unmarshal([]byte(counters), &rec.Counters); err != nil {
			return nil, fmt.Errorf("decode counters for broker %d: %w", rec.BrokerID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Rules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, points, active FROM rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var r models.Rule
		var active int
		if err := rows.Scan(&r.ID, &r.Name, &r.Slug, &r.Points, &active); err != nil {
			return nil, err
		}
		r.Active = active != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertRules(ctx context.Context, rules []models.Rule) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rules (id, name, slug, points, active) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, slug = excluded.slug,
				points = excluded.points, active = excluded.active`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rules {
			if r.Slug == "" {
				r.Slug = models.SlugFromName(r.Name)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Slug, r.Points, boolToInt(r.Active)); err != nil {
				return fmt.Errorf("upsert rule %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) TenantConfigs(ctx context.Context) ([]models.TenantConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subdomain, base_url, token, pipeline_id, active FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TenantConfig
	for rows.Next() {
		var t models.TenantConfig
		var active int
		if err := rows.Scan(&t.ID, &t.Subdomain, &t.BaseURL, &t.Token, &t.PipelineID, &active); err != nil {
			return nil, err
		}
		t.Active = active != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertTenantConfig(ctx context.Context, cfg models.TenantConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, subdomain, base_url, token, pipeline_id, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			subdomain = excluded.subdomain, base_url = excluded.base_url,
			token = excluded.token, pipeline_id = excluded.pipeline_id,
			active = excluded.active`,
		cfg.ID, cfg.Subdomain, cfg.BaseURL, cfg.Token, cfg.PipelineID, boolToInt(cfg.Active))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
