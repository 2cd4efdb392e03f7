// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package scoring

import (
	"reflect"
	"testing"
	"time"

	"github.com/leadleague/leadleague/internal/models"
)

var spLoc = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return loc
}()

// evalTime is a Tuesday, 10:00, inside business hours.
var evalTime = time.Date(2026, 8, 25, 10, 0, 0, 0, spLoc)

func agent(id int64, name string) models.Broker {
	return models.Broker{ID: id, TenantID: "acme", Name: name, Role: models.RoleAgent}
}

func rule(slug string, points int) models.Rule {
	return models.Rule{Name: slug, Slug: slug, Points: points, Active: true}
}

func opts() Options {
	return Options{Now: evalTime, Location: spLoc}
}

func TestRespondedWithinHourScoresPoints(t *testing.T) {
	b := agent(1, "Ana")
	lead := models.Lead{ID: 100, BrokerID: 1, Name: "L", Status: models.LeadStatusInProgress,
		CreatedAt: evalTime.Add(-time.Hour), UpdatedAt: evalTime.Add(-time.Hour)}
	msg := models.NewActivity(1, 100, 1, models.ActivityMessageSent, "", "oi", evalTime.Add(-30*time.Minute))

	recs := Score([]models.Broker{b}, []models.Lead{lead}, []models.Activity{msg},
		[]models.Rule{rule("leads_respondidos_1h", 2)}, opts())

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if got := recs[0].Counters["leads_respondidos_1h"]; got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
	if recs[0].Total != 2 {
		t.Errorf("Total = %d, want 2", recs[0].Total)
	}
}

func TestSlowFirstResponseDoesNotCount(t *testing.T) {
	b := agent(1, "Ana")
	lead := models.Lead{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
		CreatedAt: evalTime.Add(-5 * time.Hour), UpdatedAt: evalTime.Add(-5 * time.Hour)}
	// First response 2h after creation: outside the 1h window.
	msg := models.NewActivity(1, 100, 1, models.ActivityMessageSent, "", "oi", evalTime.Add(-3*time.Hour))

	recs := Score([]models.Broker{b}, []models.Lead{lead}, []models.Activity{msg},
		[]models.Rule{rule("leads_respondidos_1h", 2)}, opts())

	if got := recs[0].Counters["leads_respondidos_1h"]; got != 0 {
		t.Errorf("counter = %d, want 0", got)
	}
}

func TestUnknownRuleZeroFills(t *testing.T) {
	b := agent(1, "Ana")
	rules := []models.Rule{
		rule("vendas_realizadas", 15),
		{Name: "Regra Experimental", Points: 99, Active: true},
	}
	lead := models.Lead{ID: 100, BrokerID: 1, StatusID: 142, Status: models.LeadStatusWon,
		CreatedAt: evalTime.Add(-48 * time.Hour), UpdatedAt: evalTime.Add(-24 * time.Hour)}

	recs := Score([]models.Broker{b}, []models.Lead{lead}, nil, rules, opts())

	if got, ok := recs[0].Counters["regra_experimental"]; !ok || got != 0 {
		t.Errorf("unknown rule counter = %d (present=%v), want zero-filled 0", got, ok)
	}
	if recs[0].Total != 15 {
		t.Errorf("Total = %d, want 15 (unknown rule contributes nothing)", recs[0].Total)
	}
}

func TestNegativeTotalClampsToZero(t *testing.T) {
	b := agent(1, "Ana")
	// Open lead untouched for 3 days.
	lead := models.Lead{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
		CreatedAt: evalTime.Add(-72 * time.Hour), UpdatedAt: evalTime.Add(-72 * time.Hour)}

	recs := Score([]models.Broker{b}, []models.Lead{lead}, nil,
		[]models.Rule{rule("leads_sem_interacao_24h", -3)}, opts())

	if got := recs[0].Counters["leads_sem_interacao_24h"]; got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
	if recs[0].Total != 0 {
		t.Errorf("Total = %d, want 0 (clamped)", recs[0].Total)
	}
}

func TestAdminsExcludedAndZeroRows(t *testing.T) {
	brokers := []models.Broker{
		agent(1, "Ana"),
		{ID: 2, Name: "Chef", Role: models.RoleAdmin},
	}

	recs := Score(brokers, nil, nil, DefaultRules, opts())

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 (admin excluded)", len(recs))
	}
	rec := recs[0]
	if rec.BrokerID != 1 {
		t.Errorf("BrokerID = %d, want 1", rec.BrokerID)
	}
	if rec.Total != 0 {
		t.Errorf("Total = %d, want 0 for broker with no data", rec.Total)
	}
	if len(rec.Counters) != len(DefaultRules) {
		t.Errorf("got %d counters, want %d (one per rule)", len(rec.Counters), len(DefaultRules))
	}
	for slug, v := range rec.Counters {
		if v != 0 {
			t.Errorf("counter %q = %d, want 0", slug, v)
		}
	}
}

func TestQuickReplyPairs(t *testing.T) {
	b := agent(1, "Ana")
	lead := models.Lead{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
		CreatedAt: evalTime.Add(-10 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)}
	acts := []models.Activity{
		models.NewActivity(1, 100, 1, models.ActivityMessageReceived, "", "oi?", evalTime.Add(-8*time.Hour)),
		models.NewActivity(2, 100, 1, models.ActivityMessageSent, "", "olá!", evalTime.Add(-7*time.Hour)), // 1h: quick
		models.NewActivity(3, 100, 1, models.ActivityMessageReceived, "", "e aí?", evalTime.Add(-6*time.Hour)),
		models.NewActivity(4, 100, 1, models.ActivityMessageSent, "", "resposta", evalTime.Add(-1*time.Hour)), // 5h: slow
	}

	recs := Score([]models.Broker{b}, []models.Lead{lead}, acts,
		[]models.Rule{rule("resposta_rapida_3h", 4)}, opts())

	if got := recs[0].Counters["resposta_rapida_3h"]; got != 1 {
		t.Errorf("counter = %d, want 1 (one pair within 3h)", got)
	}
}

func TestAllTodayResponded(t *testing.T) {
	b := agent(1, "Ana")
	todayLead := func(id int64) models.Lead {
		return models.Lead{ID: id, BrokerID: 1, Status: models.LeadStatusInProgress,
			CreatedAt: evalTime.Add(-2 * time.Hour), UpdatedAt: evalTime.Add(-2 * time.Hour)}
	}

	tests := []struct {
		name  string
		leads []models.Lead
		acts  []models.Activity
		want  int
	}{
		{
			"all responded",
			[]models.Lead{todayLead(100), todayLead(101)},
			[]models.Activity{
				models.NewActivity(1, 100, 1, models.ActivityMessageSent, "", "a", evalTime.Add(-time.Hour)),
				models.NewActivity(2, 101, 1, models.ActivityMessageSent, "", "b", evalTime.Add(-time.Hour)),
			},
			1,
		},
		{
			"one unanswered",
			[]models.Lead{todayLead(100), todayLead(101)},
			[]models.Activity{
				models.NewActivity(1, 100, 1, models.ActivityMessageSent, "", "a", evalTime.Add(-time.Hour)),
			},
			0,
		},
		{
			"no leads today",
			[]models.Lead{{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
				CreatedAt: evalTime.Add(-48 * time.Hour), UpdatedAt: evalTime.Add(-48 * time.Hour)}},
			nil,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Score([]models.Broker{b}, tt.leads, tt.acts,
				[]models.Rule{rule("todos_leads_respondidos", 5)}, opts())
			if got := recs[0].Counters["todos_leads_respondidos"]; got != tt.want {
				t.Errorf("counter = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVisitAndProposalKeywords(t *testing.T) {
	b := agent(1, "Ana")
	leads := []models.Lead{
		{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress, CreatedAt: evalTime.Add(-72 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)},
		{ID: 101, BrokerID: 1, Status: models.LeadStatusInProgress, CreatedAt: evalTime.Add(-72 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)},
	}
	acts := []models.Activity{
		models.NewActivity(1, 100, 1, models.ActivityStatusChange, "Novo", "Visita Agendada", evalTime.Add(-30*time.Hour)),
		// Second visit on the same lead: unique-lead counting.
		models.NewActivity(2, 100, 1, models.ActivityStatusChange, "Visita Agendada", "Visita Realizada", evalTime.Add(-20*time.Hour)),
		models.NewActivity(3, 101, 1, models.ActivityStatusChange, "Novo", "Proposta Enviada", evalTime.Add(-10*time.Hour)),
	}

	recs := Score([]models.Broker{b}, leads, acts,
		[]models.Rule{rule("leads_visitados", 5), rule("propostas_enviadas", 8)}, opts())

	if got := recs[0].Counters["leads_visitados"]; got != 1 {
		t.Errorf("leads_visitados = %d, want 1 (unique leads)", got)
	}
	if got := recs[0].Counters["propostas_enviadas"]; got != 1 {
		t.Errorf("propostas_enviadas = %d, want 1", got)
	}
	if recs[0].Total != 13 {
		t.Errorf("Total = %d, want 13", recs[0].Total)
	}
}

func TestLostToCompetitor(t *testing.T) {
	b := agent(1, "Ana")
	leads := []models.Lead{
		{ID: 100, BrokerID: 1, Status: models.LeadStatusLost, Stage: "Perdido para concorrente",
			CreatedAt: evalTime.Add(-72 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)},
		{ID: 101, BrokerID: 1, Status: models.LeadStatusLost, Stage: "Sem interesse",
			CreatedAt: evalTime.Add(-72 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)},
	}

	recs := Score([]models.Broker{b}, leads, nil,
		[]models.Rule{rule("leads_perdidos", -6)}, opts())

	if got := recs[0].Counters["leads_perdidos"]; got != 1 {
		t.Errorf("counter = %d, want 1 (only competitor loss counts)", got)
	}
}

func TestAlertCounters(t *testing.T) {
	b := agent(1, "Ana")
	leads := []models.Lead{
		// Responded after 20h: counts for both 12h and 18h alerts.
		{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
			CreatedAt: evalTime.Add(-30 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)},
		// Stale: no stage change for 6 days.
		{ID: 101, BrokerID: 1, Status: models.LeadStatusInProgress,
			CreatedAt: evalTime.Add(-6 * 24 * time.Hour), UpdatedAt: evalTime.Add(-6 * 24 * time.Hour)},
	}
	acts := []models.Activity{
		models.NewActivity(1, 100, 1, models.ActivityMessageSent, "", "oi", evalTime.Add(-10*time.Hour)),
		// Keeps lead 101 non-neglected but it has no status change.
		models.NewActivity(2, 101, 1, models.ActivityNote, "", "ligar amanhã", evalTime.Add(-time.Hour)),
	}

	recs := Score([]models.Broker{b}, leads, acts, DefaultRules, opts())

	rec := recs[0]
	if rec.RespondedAfter18h != 1 {
		t.Errorf("RespondedAfter18h = %d, want 1", rec.RespondedAfter18h)
	}
	if rec.ResponseOver12h != 1 {
		t.Errorf("ResponseOver12h = %d, want 1", rec.ResponseOver12h)
	}
	if rec.StaleFiveDays != 1 {
		t.Errorf("StaleFiveDays = %d, want 1", rec.StaleFiveDays)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	brokers := []models.Broker{agent(1, "Ana"), agent(2, "Bia")}
	leads := []models.Lead{
		{ID: 100, BrokerID: 1, Name: "L", ContactName: "C", Value: 1000,
			Status: models.LeadStatusWon, CreatedAt: evalTime.Add(-48 * time.Hour), UpdatedAt: evalTime.Add(-24 * time.Hour)},
		{ID: 101, BrokerID: 2, Status: models.LeadStatusInProgress,
			CreatedAt: evalTime.Add(-72 * time.Hour), UpdatedAt: evalTime.Add(-72 * time.Hour)},
	}
	acts := []models.Activity{
		models.NewActivity(1, 100, 1, models.ActivityMessageSent, "", "oi", evalTime.Add(-47*time.Hour)),
	}

	first := Score(brokers, leads, acts, DefaultRules, opts())
	second := Score(brokers, leads, acts, DefaultRules, opts())

	if !reflect.DeepEqual(first, second) {
		t.Error("Score is not deterministic for identical inputs")
	}
	// Ordering: higher total first.
	if len(first) == 2 && first[0].Total < first[1].Total {
		t.Errorf("records not ordered by total: %d before %d", first[0].Total, first[1].Total)
	}
}

func TestSameDayUpdate(t *testing.T) {
	b := agent(1, "Ana")
	// Created and updated on the same calendar day in São Paulo.
	created := time.Date(2026, 8, 24, 9, 0, 0, 0, spLoc)
	leads := []models.Lead{
		{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
			CreatedAt: created, UpdatedAt: created.Add(5 * time.Hour)},
		// Updated next day.
		{ID: 101, BrokerID: 1, Status: models.LeadStatusInProgress,
			CreatedAt: created, UpdatedAt: created.Add(20 * time.Hour)},
	}

	recs := Score([]models.Broker{b}, leads, nil,
		[]models.Rule{rule("leads_atualizados_mesmo_dia", 2)}, opts())

	if got := recs[0].Counters["leads_atualizados_mesmo_dia"]; got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
}

func TestPositiveFeedbackCountsNotesOnly(t *testing.T) {
	b := agent(1, "Ana")
	lead := models.Lead{ID: 100, BrokerID: 1, Status: models.LeadStatusInProgress,
		CreatedAt: evalTime.Add(-2 * time.Hour), UpdatedAt: evalTime.Add(-time.Hour)}
	acts := []models.Activity{
		models.NewActivity(1, 100, 1, models.ActivityNote, "", "Atendimento excelente, parabéns", evalTime.Add(-90*time.Minute)),
		// Matching text arriving as chat does not register.
		models.NewActivity(2, 100, 1, models.ActivityMessageReceived, "", "serviço excelente", evalTime.Add(-80*time.Minute)),
	}

	recs := Score([]models.Broker{b}, []models.Lead{lead}, acts,
		[]models.Rule{rule("feedbacks_positivos", 3)}, opts())

	if got := recs[0].Counters["feedbacks_positivos"]; got != 1 {
		t.Errorf("counter = %d, want 1 (note only)", got)
	}
	if recs[0].Total != 3 {
		t.Errorf("Total = %d, want 3", recs[0].Total)
	}
}
