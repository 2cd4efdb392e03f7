// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package api

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/metrics"
	"github.com/leadleague/leadleague/internal/store"
)

const maxWebhookBody = 1 << 20 // 1MB

// relevantWebhookEvents are the provider notifications that warrant an
// immediate resync instead of waiting for the next cycle.
var relevantWebhookEvents = map[string]bool{
	"lead_status_changed":   true,
	"incoming_chat_message": true,
	"outgoing_chat_message": true,
	"task_completed":        true,
	"common_note_added":     true,
	"note_created":          true,
}

type webhookPayload struct {
	TenantID string        `json:"tenant_id"`
	Event    string        `json:"event"`
	Leads    []webhookLead `json:"leads,omitempty"`
}

type webhookLead struct {
	ID       int64 `json:"id"`
	StatusID int64 `json:"status_id"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Delivery ids make provider retries traceable across log lines.
	deliveryID := uuid.NewString()

	var payload webhookPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := dec.Decode(&payload); err != nil {
		metrics.WebhookRequests.WithLabelValues("invalid", "rejected").Inc()
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if payload.TenantID == "" || payload.Event == "" {
		metrics.WebhookRequests.WithLabelValues("invalid", "rejected").Inc()
		writeError(w, http.StatusBadRequest, "tenant_id and event are required")
		return
	}

	if !relevantWebhookEvents[payload.Event] {
		metrics.WebhookRequests.WithLabelValues(payload.Event, "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"ignored": true})
		return
	}

	logging.Info().
		Str("delivery_id", deliveryID).
		Str("tenant", payload.TenantID).
		Str("event", payload.Event).
		Int("leads", len(payload.Leads)).
		Msg("Webhook triggering resync")

	if err := s.syncer.ForceSync(r.Context(), payload.TenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.WebhookRequests.WithLabelValues(payload.Event, "unknown_tenant").Inc()
			writeError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		logging.Error().Err(err).
			Str("delivery_id", deliveryID).
			Str("tenant", payload.TenantID).
			Msg("Webhook-triggered sync failed")
		metrics.WebhookRequests.WithLabelValues(payload.Event, "error").Inc()
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	metrics.WebhookRequests.WithLabelValues(payload.Event, "synced").Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{"synced": true, "delivery_id": deliveryID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"workers": s.syncer.Statuses()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant query parameter is required")
		return
	}
	scores, err := s.store.Scores(r.Context(), tenant)
	if err != nil {
		logging.Error().Err(err).Str("tenant", tenant).Msg("Failed to read scores")
		writeError(w, http.StatusInternalServerError, "failed to read scores")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenant": tenant, "scores": scores})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.Rules(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read rules")
		writeError(w, http.StatusInternalServerError, "failed to read rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
