// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package scoring derives broker score records from synced data. Score is a
// pure function: same inputs, same output, no clock reads beyond the
// evaluation instant passed in Options.
//
// Rules come from the store; each rule name maps onto a fixed predicate
// kind. A rule whose slug matches no predicate still gets a zero-filled
// counter, so dashboard columns never disappear when a rule is renamed
// ahead of a release.
package scoring

import (
	"regexp"

	"github.com/leadleague/leadleague/internal/models"
)

// PredicateKind selects the evaluation logic for one rule. The set is
// closed: new behavior means a new kind here plus an entry in kindBySlug.
type PredicateKind int

const (
	// KindNone zero-fills the counter and contributes no points.
	KindNone PredicateKind = iota
	KindRespondedWithinHour
	KindVisited
	KindProposalSent
	KindSaleClosed
	KindSameDayUpdate
	KindQuickReply
	KindAllTodayResponded
	KindCompleteRegistration
	KindPostSaleFollowUp
	KindPositiveFeedback
	KindComplaints
	KindIdle24h
	KindIgnored48h
	KindLostToCompetitor
)

// kindBySlug binds rule slugs to predicate kinds. Unknown slugs fall back
// to KindNone.
var kindBySlug = map[string]PredicateKind{
	"leads_respondidos_1h":        KindRespondedWithinHour,
	"leads_visitados":             KindVisited,
	"propostas_enviadas":          KindProposalSent,
	"vendas_realizadas":           KindSaleClosed,
	"leads_atualizados_mesmo_dia": KindSameDayUpdate,
	"resposta_rapida_3h":          KindQuickReply,
	"todos_leads_respondidos":     KindAllTodayResponded,
	"cadastro_completo":           KindCompleteRegistration,
	"acompanhamento_pos_venda":    KindPostSaleFollowUp,
	"feedbacks_positivos":         KindPositiveFeedback,
	"leads_com_reclamacao":        KindComplaints,
	"leads_sem_interacao_24h":     KindIdle24h,
	"leads_ignorados_48h":         KindIgnored48h,
	"leads_perdidos":              KindLostToCompetitor,
}

// KindForRule resolves the predicate kind for a rule.
func KindForRule(r models.Rule) PredicateKind {
	slug := r.Slug
	if slug == "" {
		slug = models.SlugFromName(r.Name)
	}
	if k, ok := kindBySlug[slug]; ok {
		return k
	}
	return KindNone
}

// DefaultRules is the rule table seeded into an empty store. Points mirror
// the production dashboard defaults.
var DefaultRules = []models.Rule{
	{ID: 1, Name: "Leads Respondidos 1h", Slug: "leads_respondidos_1h", Points: 2, Active: true},
	{ID: 2, Name: "Leads Visitados", Slug: "leads_visitados", Points: 5, Active: true},
	{ID: 3, Name: "Propostas Enviadas", Slug: "propostas_enviadas", Points: 8, Active: true},
	{ID: 4, Name: "Vendas Realizadas", Slug: "vendas_realizadas", Points: 15, Active: true},
	{ID: 5, Name: "Leads Atualizados Mesmo Dia", Slug: "leads_atualizados_mesmo_dia", Points: 2, Active: true},
	{ID: 6, Name: "Resposta Rápida 3h", Slug: "resposta_rapida_3h", Points: 4, Active: true},
	{ID: 7, Name: "Todos Leads Respondidos", Slug: "todos_leads_respondidos", Points: 5, Active: true},
	{ID: 8, Name: "Cadastro Completo", Slug: "cadastro_completo", Points: 3, Active: true},
	{ID: 9, Name: "Acompanhamento Pós-Venda", Slug: "acompanhamento_pos_venda", Points: 10, Active: true},
	{ID: 10, Name: "Feedbacks Positivos", Slug: "feedbacks_positivos", Points: 3, Active: true},
	{ID: 11, Name: "Leads Com Reclamação", Slug: "leads_com_reclamacao", Points: -4, Active: true},
	{ID: 12, Name: "Leads Sem Interação 24h", Slug: "leads_sem_interacao_24h", Points: -3, Active: true},
	{ID: 13, Name: "Leads Ignorados 48h", Slug: "leads_ignorados_48h", Points: -5, Active: true},
	{ID: 14, Name: "Leads Perdidos", Slug: "leads_perdidos", Points: -6, Active: true},
}

// Keyword patterns matched against stage names, notes and messages.
// Case-insensitive with unicode folding; the vocabulary follows the
// Brazilian Portuguese pipelines this system scores.
var (
	visitPattern      = regexp.MustCompile(`(?i)visita|visitado|agendamento|apresentação`)
	proposalPattern   = regexp.MustCompile(`(?i)proposta|contrato|negociação`)
	positivePattern   = regexp.MustCompile(`(?i)positivo|bom|excelente|parabéns`)
	complaintPattern  = regexp.MustCompile(`(?i)reclamação|insatisfeito|problema|queixa`)
	competitorPattern = regexp.MustCompile(`(?i)concorrente`)
)
