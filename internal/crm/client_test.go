// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leadleague/leadleague/internal/ratelimit"
)

// newTestClient builds a client against srv with a generous limiter and
// instant retry sleeps.
func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:  srv.URL,
		Token:    "test-token",
		TenantID: "acme",
		Location: time.UTC,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, ratelimit.NewWithWindow(100, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing base URL", Config{Token: "x"}},
		{"missing token", Config{BaseURL: "https://acme.kommo.com"}},
		{"garbage base URL", Config{BaseURL: "::://bad", Token: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != KindConfig {
				t.Errorf("KindOf = %v, want KindConfig", KindOf(err))
			}
		})
	}
}

func TestUsersPaginationAndRoles(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/users" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		pages.Add(1)
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(`{"_embedded":{"users":[
				{"id":1,"name":"Ana","email":"ana@acme.com","rights":{"is_admin":false,"is_active":true}},
				{"id":2,"name":"Chef","email":"chef@acme.com","rights":{"is_admin":true,"is_active":true}}
			]}}`))
		case "2":
			w.Write([]byte(`{"_embedded":{"users":[
				{"id":3,"name":"Gone","email":"gone@acme.com","rights":{"is_admin":false,"is_active":false}}
			]}}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.PageLimit = 2 })

	brokers, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	// Inactive user on page 2 is skipped; its short page ends pagination.
	if len(brokers) != 2 {
		t.Fatalf("got %d brokers, want 2", len(brokers))
	}
	if !brokers[0].IsAgent() {
		t.Error("non-admin should be an agent")
	}
	if brokers[1].IsAgent() {
		t.Error("admin should not be an agent")
	}
	if brokers[0].TenantID != "acme" {
		t.Errorf("TenantID = %q, want acme", brokers[0].TenantID)
	}
	if got := pages.Load(); got != 2 {
		t.Errorf("fetched %d pages, want 2", got)
	}
}

func TestBlockedIsFatalNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"blocked"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	_, err := c.Users(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsBlocked(err) {
		t.Errorf("expected blocked error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want exactly 1 (no retry on 403)", got)
	}
}

func TestRateLimitedRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusGatewayTimeout)
		default:
			w.Write([]byte(`{"_embedded":{"users":[{"id":1,"name":"Ana","rights":{"is_active":true}}]}}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	brokers, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users after retries: %v", err)
	}
	if len(brokers) != 1 {
		t.Fatalf("got %d brokers, want 1", len(brokers))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestTransientRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	_, err := c.Users(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if KindOf(err) != KindTransient {
		t.Errorf("KindOf = %v, want KindTransient", KindOf(err))
	}
	want := int32(policyFor(KindTransient).maxAttempts)
	if got := calls.Load(); got != want {
		t.Errorf("server saw %d requests, want %d", got, want)
	}
}

func TestLeadsEmptyPageStreak(t *testing.T) {
	var maxPage atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v4/leads/pipelines" {
			w.Write([]byte(`{"_embedded":{"pipelines":[{"id":7,"name":"Sales","_embedded":{"statuses":[
				{"id":10,"name":"Novo"},{"id":142,"name":"Venda ganha"}]}}]}}`))
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if int32(page) > maxPage.Load() {
			maxPage.Store(int32(page))
		}
		switch page {
		case 1:
			w.Write([]byte(`{"_embedded":{"leads":[{"id":100,"name":"Lead A","price":5000,
				"responsible_user_id":1,"status_id":10,"pipeline_id":7,
				"created_at":1756100000,"updated_at":1756101000}]}}`))
		case 3:
			w.Write([]byte(`{"_embedded":{"leads":[{"id":101,"name":"Lead B","price":0,
				"responsible_user_id":1,"status_id":142,"pipeline_id":7,
				"created_at":1756100000,"updated_at":1756100000}]}}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.PipelineID = 7
		cfg.PageLimit = 1
		cfg.EmptyPageStreak = 2
		cfg.MaxPages = 20
	})

	leads, err := c.Leads(context.Background())
	if err != nil {
		t.Fatalf("Leads: %v", err)
	}
	// Page 2 is empty but the streak is 1; page 3 has data; pages 4-5
	// empty reach the streak of 2 and stop.
	if len(leads) != 2 {
		t.Fatalf("got %d leads, want 2", len(leads))
	}
	if got := maxPage.Load(); got != 5 {
		t.Errorf("pagination stopped at page %d, want 5", got)
	}
	if leads[0].Stage != "Novo" {
		t.Errorf("Stage = %q, want Novo", leads[0].Stage)
	}
	if leads[1].Status != "won" {
		t.Errorf("Status = %q, want won", leads[1].Status)
	}
}

func TestMaxPagesCutoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every page full: pagination must stop at the ceiling.
		w.Write([]byte(`{"_embedded":{"users":[{"id":1,"name":"Ana","rights":{"is_active":true}}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.PageLimit = 1
		cfg.MaxPages = 4
	})

	brokers, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(brokers) != 4 {
		t.Errorf("got %d brokers, want 4 (MaxPages ceiling)", len(brokers))
	}
}
