// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package crm implements the provider REST client: paginated fetches for
// users, leads and events, normalization onto the domain model, and the
// retry/backoff discipline that keeps a tenant inside its request budget.
//
// All requests for one tenant flow through a shared ratelimit.Limiter and a
// circuit breaker (see breaker.go). Failures carry a Kind and the retry
// policy table in errors.go decides what happens next; callers only need
// errors.As / IsBlocked.
package crm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/metrics"
	"github.com/leadleague/leadleague/internal/ratelimit"
)

const (
	// maxPageLimit is the provider's hard cap on page size.
	maxPageLimit = 250

	// maxErrorBodySize limits how much of an error response is read for
	// diagnostics.
	maxErrorBodySize = 64 * 1024

	// maxResponseBodySize guards against pathological payloads.
	maxResponseBodySize = 16 << 20
)

// Config holds the per-tenant client configuration.
type Config struct {
	// BaseURL is the tenant's account root, e.g.
	// "https://acme.kommo.com". Required.
	BaseURL string

	// Token is the long-lived bearer token. Required.
	Token string

	// TenantID stamps every normalized record.
	TenantID string

	// PipelineID restricts lead fetches to one pipeline. Zero fetches all.
	PipelineID int64

	// PageLimit is the page size, capped at maxPageLimit. Default 250.
	PageLimit int

	// MaxPages bounds any single paginated fetch. The cutoff is a
	// deliberate cost ceiling: a fetch that hits it returns what it has.
	// Default 50.
	MaxPages int

	// EmptyPageStreak stops pagination after this many consecutive empty
	// pages. Default 2.
	EmptyPageStreak int

	// EventLookback is the historical window for event fetches,
	// recomputed from the current time at each fetch. Default 30 days.
	EventLookback time.Duration

	// ChunkSize is how many event pages one parallel chunk covers.
	// Default 5.
	ChunkSize int

	// Workers is the parallelism inside one event chunk. Default 2.
	Workers int

	// Location is the timezone all timestamps normalize into.
	// Default America/Sao_Paulo.
	Location *time.Location

	// HTTPTimeout is the per-request timeout. Default 30s.
	HTTPTimeout time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.PageLimit <= 0 || c.PageLimit > maxPageLimit {
		c.PageLimit = maxPageLimit
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.EmptyPageStreak <= 0 {
		c.EmptyPageStreak = 2
	}
	if c.EventLookback <= 0 {
		c.EventLookback = 30 * 24 * time.Hour
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 5
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	return c
}

// Client is the provider REST client for one tenant.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	backoff    *backoffTracker
	loc        *time.Location

	// sleep is sleepCtx in production; tests inject a no-op to avoid
	// real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewClient validates the configuration and builds a client. The limiter is
// shared by every caller holding the tenant's credentials.
func NewClient(cfg Config, limiter *ratelimit.Limiter) (*Client, error) {
	cfg = cfg.withDefaults()

	if cfg.BaseURL == "" {
		return nil, &Error{Kind: KindConfig, Err: errors.New("base URL is required")}
	}
	if cfg.Token == "" {
		return nil, &Error{Kind: KindConfig, Err: errors.New("token is required")}
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{Kind: KindConfig, Err: fmt.Errorf("invalid base URL %q", cfg.BaseURL)}
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultBudget)
	}
	loc := cfg.Location
	if loc == nil {
		loc, err = time.LoadLocation("America/Sao_Paulo")
		if err != nil {
			loc = time.UTC
		}
	}

	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    limiter,
		backoff:    newBackoffTracker(),
		loc:        loc,
		sleep:      sleepCtx,
	}, nil
}

// TenantID returns the tenant this client is bound to.
func (c *Client) TenantID() string {
	return c.cfg.TenantID
}

// doRequest issues one GET with the full retry discipline and returns the
// response body. An empty body means an empty page (204).
func (c *Client) doRequest(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	attempts := make(map[Kind]int)

	for {
		body, err := c.once(ctx, endpoint, query)
		if err == nil {
			c.backoff.reset()
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := KindOf(err)
		pol := policyFor(kind)
		attempts[kind]++
		if attempts[kind] >= pol.maxAttempts {
			return nil, err
		}

		wait := pol.flatDelay
		if pol.exponential {
			wait = c.backoff.next()
			var ce *Error
			if errors.As(err, &ce) && ce.RetryAfter > wait {
				wait = ce.RetryAfter
			}
		}

		metrics.APIRetries.WithLabelValues(endpoint, kind.String()).Inc()
		logging.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("kind", kind.String()).
			Int("attempt", attempts[kind]).
			Dur("wait", wait).
			Msg("CRM request failed, retrying")

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// once issues a single attempt: budget acquisition, request, classification.
func (c *Client) once(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	metrics.RateLimitWait.Observe(time.Since(waitStart).Seconds())

	u := c.baseURL.JoinPath("api", "v4").JoinPath(endpoint)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	reqStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &Error{Kind: KindTransient, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(reqStart).Seconds())
	metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		if err != nil {
			return nil, &Error{Kind: KindTransient, Endpoint: endpoint, Err: err}
		}
		return body, nil

	case resp.StatusCode == http.StatusNoContent:
		// Empty page.
		return nil, nil

	default:
		return nil, c.statusError(endpoint, resp)
	}
}

// statusError builds the typed error for a non-success response, including
// a bounded body excerpt and any Retry-After hint.
func (c *Client) statusError(endpoint string, resp *http.Response) *Error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	e := &Error{
		Kind:     kindForStatus(resp.StatusCode),
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Err:      fmt.Errorf("unexpected status: %s", firstLine(string(excerpt))),
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// firstLine trims an error body excerpt to its first line for logging.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			return s[:i]
		}
	}
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

// getPage fetches and decodes one page. ok is false for an empty page.
func getPage[T any](ctx context.Context, c *Client, endpoint string, query url.Values) (out *T, ok bool, err error) {
	body, err := c.doRequest(ctx, endpoint, query)
	if err != nil {
		return nil, false, err
	}
	if len(body) == 0 {
		return nil, false, nil
	}
	out = new(T)
	if err := json.Unmarshal(body, out); err != nil {
		return nil, false, &Error{Kind: KindData, Endpoint: endpoint, Err: err}
	}
	metrics.PagesFetched.WithLabelValues(endpoint).Inc()
	return out, true, nil
}

// pageQuery builds the standard pagination query.
func (c *Client) pageQuery(page int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	return q
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
