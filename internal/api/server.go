// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package api is the HTTP surface: webhook intake, worker status, health
// and Prometheus metrics. Authentication is deliberately absent; the
// service is expected to sit behind the platform's edge.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadleague/leadleague/internal/config"
	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/metrics"
	"github.com/leadleague/leadleague/internal/store"
	syncpkg "github.com/leadleague/leadleague/internal/sync"
)

// Syncer is the slice of the sync runner the HTTP surface needs.
type Syncer interface {
	ForceSync(ctx context.Context, tenantID string) error
	Statuses() []syncpkg.Status
}

// Server wires the router and owns the http.Server lifecycle.
type Server struct {
	cfg    config.ServerConfig
	store  store.Gateway
	syncer Syncer
	srv    *http.Server
}

// NewServer builds the HTTP server with its routes mounted.
func NewServer(cfg config.ServerConfig, gw store.Gateway, syncer Syncer) *Server {
	s := &Server{cfg: cfg, store: gw, syncer: syncer}
	s.srv = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestTimer)
	r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook/crm", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/scores", s.handleScores)
		r.Get("/rules", s.handleRules)
	})
	return r
}

// Serve runs the listener until ctx is canceled. It satisfies
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) String() string { return "http-server" }

// requestTimer records handler latency per route pattern.
func requestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(pattern, r.Method).Observe(time.Since(start).Seconds())
	})
}
