// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package sync

import (
	"context"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/metrics"
	"github.com/leadleague/leadleague/internal/models"
	"github.com/leadleague/leadleague/internal/scoring"
	"github.com/leadleague/leadleague/internal/store"
)

const (
	defaultCycleInterval = 90 * time.Minute
	defaultInactivity    = 4 * time.Hour
)

// Worker states reported on /status.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateError   = "error"
)

// ClientFactory builds a CRM client for one tenant.
type ClientFactory func(cfg models.TenantConfig) (Client, error)

// Status is one tenant worker's externally visible state.
type Status struct {
	Tenant      string    `json:"tenant"`
	State       string    `json:"state"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Heartbeat   time.Time `json:"heartbeat"`
}

// RunnerConfig tunes the cycle loop.
type RunnerConfig struct {
	// Interval between full cycles. Default 90m.
	Interval time.Duration

	// Staleness per resource inside one coordinator. Default 30m.
	Staleness time.Duration

	// Inactivity is how long a worker may go without a heartbeat before the
	// sweep forgets its registration. Default 4h.
	Inactivity time.Duration

	// ScoreOpts is passed to every scoring pass. Now is stamped per pass.
	ScoreOpts scoring.Options
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultCycleInterval
	}
	if c.Staleness <= 0 {
		c.Staleness = defaultStaleness
	}
	if c.Inactivity <= 0 {
		c.Inactivity = defaultInactivity
	}
	return c
}

// Runner drives one Coordinator per active tenant on a fixed cycle. One
// failing tenant never stops its siblings; its status flips to error and
// the next cycle tries again.
type Runner struct {
	store   store.Gateway
	factory ClientFactory
	cfg     RunnerConfig

	mu     stdsync.Mutex
	coords map[string]*Coordinator
	status map[string]*Status

	now func() time.Time
}

// NewRunner builds the cycle runner.
func NewRunner(gw store.Gateway, factory ClientFactory, cfg RunnerConfig) *Runner {
	return &Runner{
		store:   gw,
		factory: factory,
		cfg:     cfg.withDefaults(),
		coords:  make(map[string]*Coordinator),
		status:  make(map[string]*Status),
		now:     time.Now,
	}
}

// Serve runs cycles until ctx is canceled. It satisfies suture.Service.
func (r *Runner) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", r.cfg.Interval).
		Msg("Sync cycle runner started")
	for {
		r.RunCycle(ctx)
		r.sweep()

		t := time.NewTimer(r.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Runner) String() string { return "sync-runner" }

// RunCycle syncs every active tenant once, each on its own goroutine, and
// waits for all of them.
func (r *Runner) RunCycle(ctx context.Context) {
	tenants, err := r.store.TenantConfigs(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load tenant registry")
		return
	}

	var wg stdsync.WaitGroup
	started := 0
	for _, cfg := range tenants {
		if !cfg.Active {
			continue
		}
		started++
		wg.Add(1)
		metrics.CycleWorkers.Inc()
		go func(cfg models.TenantConfig) {
			defer wg.Done()
			defer metrics.CycleWorkers.Dec()
			r.syncTenant(ctx, cfg)
		}(cfg)
	}
	wg.Wait()
	logging.Info().Int("tenants", started).Msg("Sync cycle complete")
}

func (r *Runner) syncTenant(ctx context.Context, cfg models.TenantConfig) {
	st := r.touch(cfg.ID)
	r.setState(cfg.ID, StateRunning, "")

	coord, err := r.coordinator(cfg)
	if err != nil {
		logging.Error().Err(err).Str("tenant", cfg.ID).Msg("Failed to build CRM client")
		r.setState(cfg.ID, StateError, err.Error())
		return
	}

	if err := coord.SyncData(ctx); err != nil {
		logging.Error().Err(err).Str("tenant", cfg.ID).Msg("Tenant sync failed")
		r.setState(cfg.ID, StateError, err.Error())
		return
	}

	r.mu.Lock()
	st.LastSuccess = r.now()
	r.mu.Unlock()
	r.setState(cfg.ID, StateIdle, "")
}

// ForceSync runs an immediate full pass for one tenant, building its
// coordinator on demand. Used by the webhook handler.
func (r *Runner) ForceSync(ctx context.Context, tenantID string) error {
	tenants, err := r.store.TenantConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load tenants: %w", err)
	}
	for _, cfg := range tenants {
		if cfg.ID != tenantID || !cfg.Active {
			continue
		}
		r.touch(cfg.ID)
		r.setState(cfg.ID, StateRunning, "")
		coord, err := r.coordinator(cfg)
		if err != nil {
			r.setState(cfg.ID, StateError, err.Error())
			return err
		}
		if err := coord.ForceSync(ctx); err != nil {
			r.setState(cfg.ID, StateError, err.Error())
			return err
		}
		r.mu.Lock()
		r.status[cfg.ID].LastSuccess = r.now()
		r.mu.Unlock()
		r.setState(cfg.ID, StateIdle, "")
		return nil
	}
	return fmt.Errorf("tenant %q: %w", tenantID, store.ErrNotFound)
}

// Statuses returns a stable-ordered copy of every registered worker status.
func (r *Runner) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.status))
	for _, st := range r.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant < out[j].Tenant })
	return out
}

// coordinator returns the tenant's coordinator, creating it on first use.
func (r *Runner) coordinator(cfg models.TenantConfig) (*Coordinator, error) {
	r.mu.Lock()
	coord, ok := r.coords[cfg.ID]
	r.mu.Unlock()
	if ok {
		return coord, nil
	}

	client, err := r.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("client for tenant %s: %w", cfg.ID, err)
	}
	coord = NewCoordinator(cfg.ID, client, r.store, r.cfg.Staleness, r.cfg.ScoreOpts)

	r.mu.Lock()
	// Another goroutine may have won the race.
	if existing, ok := r.coords[cfg.ID]; ok {
		coord = existing
	} else {
		r.coords[cfg.ID] = coord
	}
	r.mu.Unlock()
	return coord, nil
}

// touch registers the tenant's status entry and stamps its heartbeat.
func (r *Runner) touch(tenantID string) *Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.status[tenantID]
	if !ok {
		st = &Status{Tenant: tenantID, State: StateIdle}
		r.status[tenantID] = st
	}
	st.Heartbeat = r.now()
	st.LastRun = r.now()
	return st
}

func (r *Runner) setState(tenantID, state, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.status[tenantID]; ok {
		st.State = state
		st.LastError = errMsg
	}
}

// sweep forgets workers whose heartbeat is older than the inactivity
// window, typically tenants deactivated in the registry. Cooperative only:
// a running goroutine is never stopped here.
func (r *Runner) sweep() {
	cutoff := r.now().Add(-r.cfg.Inactivity)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, st := range r.status {
		if st.State != StateRunning && st.Heartbeat.Before(cutoff) {
			logging.Info().Str("tenant", id).Msg("Forgetting inactive sync worker")
			delete(r.status, id)
			delete(r.coords, id)
		}
	}
}
