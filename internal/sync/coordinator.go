// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package sync pulls CRM data into the store and keeps broker scores
// current. A Coordinator owns one tenant: it tracks per-resource staleness,
// fetches stale resources in dependency order, filters rows that would
// violate referential integrity, and recomputes scores when anything
// changed. The Runner drives one Coordinator per tenant on a fixed cycle.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/metrics"
	"github.com/leadleague/leadleague/internal/models"
	"github.com/leadleague/leadleague/internal/scoring"
	"github.com/leadleague/leadleague/internal/store"
)

// Resource names one synced table.
type Resource string

const (
	ResourceBrokers    Resource = "brokers"
	ResourceLeads      Resource = "leads"
	ResourceActivities Resource = "activities"
)

// syncOrder is the dependency order: leads reference brokers, activities
// reference both.
var syncOrder = []Resource{ResourceBrokers, ResourceLeads, ResourceActivities}

const (
	defaultStaleness = 30 * time.Minute
	syncAttempts     = 3
	syncRetryDelay   = time.Second
)

// Client is the slice of the CRM API the coordinator consumes.
type Client interface {
	Users(ctx context.Context) ([]models.Broker, error)
	Leads(ctx context.Context) ([]models.Lead, error)
	Events(ctx context.Context) ([]models.Activity, error)
}

// Coordinator syncs one tenant. Safe for concurrent use, though the Runner
// only ever drives one pass at a time per tenant.
type Coordinator struct {
	tenant    string
	client    Client
	store     store.Gateway
	staleness time.Duration
	scoreOpts scoring.Options

	snap *snapshot

	mu       stdsync.Mutex
	lastSync map[Resource]time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewCoordinator builds a coordinator for one tenant. A non-positive
// staleness falls back to 30 minutes.
func NewCoordinator(tenant string, client Client, gw store.Gateway, staleness time.Duration, scoreOpts scoring.Options) *Coordinator {
	if staleness <= 0 {
		staleness = defaultStaleness
	}
	return &Coordinator{
		tenant:    tenant,
		client:    client,
		store:     gw,
		staleness: staleness,
		scoreOpts: scoreOpts,
		snap:      newSnapshot(),
		lastSync:  make(map[Resource]time.Time),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Stale reports whether r needs a sync: never synced, or last success older
// than the staleness interval.
func (c *Coordinator) Stale(r Resource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastSync[r]
	return !ok || c.now().Sub(last) >= c.staleness
}

func (c *Coordinator) markSynced(r Resource) {
	c.mu.Lock()
	c.lastSync[r] = c.now()
	c.mu.Unlock()
}

// SyncData syncs every stale resource, retrying the whole pass on failure.
// Scores are recomputed when any resource actually changed.
func (c *Coordinator) SyncData(ctx context.Context) error {
	start := c.now()
	var err error
	var changed bool
	for attempt := 1; attempt <= syncAttempts; attempt++ {
		changed, err = c.syncOnce(ctx)
		if err == nil {
			break
		}
		logging.Warn().Err(err).
			Str("tenant", c.tenant).
			Int("attempt", attempt).
			Msg("Sync pass failed")
		if attempt < syncAttempts {
			if serr := c.sleep(ctx, syncRetryDelay); serr != nil {
				return serr
			}
		}
	}
	metrics.ObserveSyncDuration(c.tenant, start)
	if err != nil {
		metrics.SyncRuns.WithLabelValues(c.tenant, "error").Inc()
		return fmt.Errorf("sync tenant %s: %w", c.tenant, err)
	}
	metrics.SyncRuns.WithLabelValues(c.tenant, "success").Inc()

	if changed {
		if err := c.recomputeScores(ctx); err != nil {
			return fmt.Errorf("rescore tenant %s: %w", c.tenant, err)
		}
	}
	return nil
}

// ForceSync marks every resource stale and runs a full pass.
func (c *Coordinator) ForceSync(ctx context.Context) error {
	c.mu.Lock()
	c.lastSync = make(map[Resource]time.Time)
	c.mu.Unlock()
	c.snap.reset()
	return c.SyncData(ctx)
}

// syncOnce runs a single pass over the stale resources in dependency order.
func (c *Coordinator) syncOnce(ctx context.Context) (bool, error) {
	changed := false
	for _, r := range syncOrder {
		if !c.Stale(r) {
			continue
		}
		ch, err := c.syncResource(ctx, r)
		if err != nil {
			return changed, err
		}
		c.markSynced(r)
		changed = changed || ch
	}
	return changed, nil
}

func (c *Coordinator) syncResource(ctx context.Context, r Resource) (bool, error) {
	switch r {
	case ResourceBrokers:
		return c.syncBrokers(ctx)
	case ResourceLeads:
		return c.syncLeads(ctx)
	case ResourceActivities:
		return c.syncActivities(ctx)
	}
	return false, fmt.Errorf("unknown resource %q", r)
}

func (c *Coordinator) syncBrokers(ctx context.Context) (bool, error) {
	brokers, err := c.client.Users(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch users: %w", err)
	}
	if !c.snap.changed(ResourceBrokers, rowSum(brokers)) {
		logging.Debug().Str("tenant", c.tenant).Msg("Brokers unchanged, skipping upsert")
		return false, nil
	}
	if err := c.store.UpsertBrokers(ctx, c.tenant, brokers); err != nil {
		return false, fmt.Errorf("upsert brokers: %w", err)
	}
	metrics.RecordsSynced.WithLabelValues(c.tenant, string(ResourceBrokers)).Add(float64(len(brokers)))
	return true, nil
}

func (c *Coordinator) syncLeads(ctx context.Context) (bool, error) {
	leads, err := c.client.Leads(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch leads: %w", err)
	}

	known, err := c.knownBrokers(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if l.BrokerID != 0 && !known[l.BrokerID] {
			logging.Warn().
				Str("tenant", c.tenant).
				Int64("lead_id", l.ID).
				Int64("broker_id", l.BrokerID).
				Msg("Dropping lead referencing unknown broker")
			metrics.RecordsDropped.WithLabelValues(c.tenant, string(ResourceLeads), "unknown_broker").Inc()
			continue
		}
		kept = append(kept, l)
	}

	if !c.snap.changed(ResourceLeads, rowSum(kept)) {
		logging.Debug().Str("tenant", c.tenant).Msg("Leads unchanged, skipping upsert")
		return false, nil
	}
	if err := c.store.UpsertLeads(ctx, c.tenant, kept); err != nil {
		return false, fmt.Errorf("upsert leads: %w", err)
	}
	metrics.RecordsSynced.WithLabelValues(c.tenant, string(ResourceLeads)).Add(float64(len(kept)))
	return true, nil
}

func (c *Coordinator) syncActivities(ctx context.Context) (bool, error) {
	activities, err := c.client.Events(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch events: %w", err)
	}

	knownBrokers, err := c.knownBrokers(ctx)
	if err != nil {
		return false, err
	}
	storedLeads, err := c.store.Leads(ctx, c.tenant)
	if err != nil {
		return false, fmt.Errorf("read leads: %w", err)
	}
	knownLeads := make(map[int64]bool, len(storedLeads))
	for _, l := range storedLeads {
		knownLeads[l.ID] = true
	}

	kept := make([]models.Activity, 0, len(activities))
	for _, a := range activities {
		switch {
		case a.LeadID != 0 && !knownLeads[a.LeadID]:
			logging.Warn().
				Str("tenant", c.tenant).
				Int64("activity_id", a.ID).
				Int64("lead_id", a.LeadID).
				Msg("Dropping activity referencing unknown lead")
			metrics.RecordsDropped.WithLabelValues(c.tenant, string(ResourceActivities), "unknown_lead").Inc()
		case a.BrokerID != 0 && !knownBrokers[a.BrokerID]:
			logging.Warn().
				Str("tenant", c.tenant).
				Int64("activity_id", a.ID).
				Int64("broker_id", a.BrokerID).
				Msg("Dropping activity referencing unknown broker")
			metrics.RecordsDropped.WithLabelValues(c.tenant, string(ResourceActivities), "unknown_broker").Inc()
		default:
			kept = append(kept, a)
		}
	}

	if !c.snap.changed(ResourceActivities, rowSum(kept)) {
		logging.Debug().Str("tenant", c.tenant).Msg("Activities unchanged, skipping upsert")
		return false, nil
	}
	if err := c.store.UpsertActivities(ctx, c.tenant, kept); err != nil {
		return false, fmt.Errorf("upsert activities: %w", err)
	}
	metrics.RecordsSynced.WithLabelValues(c.tenant, string(ResourceActivities)).Add(float64(len(kept)))
	return true, nil
}

func (c *Coordinator) knownBrokers(ctx context.Context) (map[int64]bool, error) {
	brokers, err := c.store.Brokers(ctx, c.tenant)
	if err != nil {
		return nil, fmt.Errorf("read brokers: %w", err)
	}
	known := make(map[int64]bool, len(brokers))
	for _, b := range brokers {
		known[b.ID] = true
	}
	return known, nil
}

// recomputeScores reads the full tenant data set back and replaces the
// score table. Brokers with no data still get a zero row, which covers
// score initialization on a tenant's first pass.
func (c *Coordinator) recomputeScores(ctx context.Context) error {
	start := c.now()
	brokers, err := c.store.Brokers(ctx, c.tenant)
	if err != nil {
		return fmt.Errorf("read brokers: %w", err)
	}
	leads, err := c.store.Leads(ctx, c.tenant)
	if err != nil {
		return fmt.Errorf("read leads: %w", err)
	}
	activities, err := c.store.Activities(ctx, c.tenant)
	if err != nil {
		return fmt.Errorf("read activities: %w", err)
	}
	rules, err := c.store.Rules(ctx)
	if err != nil {
		return fmt.Errorf("read rules: %w", err)
	}

	records := scoring.Score(brokers, leads, activities, rules, c.scoreOpts)
	if err := c.store.UpsertScores(ctx, c.tenant, records); err != nil {
		return fmt.Errorf("upsert scores: %w", err)
	}
	metrics.ObserveScoringDuration(c.tenant, start)
	metrics.ScoredBrokers.WithLabelValues(c.tenant).Set(float64(len(records)))
	logging.Info().
		Str("tenant", c.tenant).
		Int("brokers", len(records)).
		Msg("Scores recomputed")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
