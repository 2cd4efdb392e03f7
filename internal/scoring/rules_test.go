// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package scoring

import (
	"testing"

	"github.com/leadleague/leadleague/internal/models"
)

func TestKindForRule(t *testing.T) {
	tests := []struct {
		name string
		rule models.Rule
		want PredicateKind
	}{
		{"by slug", models.Rule{Slug: "vendas_realizadas"}, KindSaleClosed},
		{"derived from name", models.Rule{Name: "Leads Respondidos 1h"}, KindRespondedWithinHour},
		{"accented name", models.Rule{Name: "Acompanhamento Pós-Venda"}, KindPostSaleFollowUp},
		{"unknown slug", models.Rule{Slug: "regra_inventada"}, KindNone},
		{"empty rule", models.Rule{}, KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindForRule(tt.rule); got != tt.want {
				t.Errorf("KindForRule = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultRulesResolve(t *testing.T) {
	if len(DefaultRules) != len(kindBySlug) {
		t.Fatalf("DefaultRules has %d rules, kindBySlug has %d entries", len(DefaultRules), len(kindBySlug))
	}
	seen := make(map[string]bool)
	for _, r := range DefaultRules {
		if seen[r.Slug] {
			t.Errorf("duplicate slug %q", r.Slug)
		}
		seen[r.Slug] = true

		if KindForRule(r) == KindNone {
			t.Errorf("default rule %q resolves to no predicate", r.Slug)
		}
		if got := models.SlugFromName(r.Name); got != r.Slug {
			t.Errorf("slug %q does not match name %q (derives %q)", r.Slug, r.Name, got)
		}
		if !r.Active {
			t.Errorf("default rule %q must start active", r.Slug)
		}
		if r.Points == 0 {
			t.Errorf("default rule %q has zero points", r.Slug)
		}
	}
}

func TestKeywordPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    bool
	}{
		{"visit", "Visita Agendada", true},
		{"visit", "Apresentação do imóvel", true},
		{"visit", "Proposta Enviada", false},
		{"proposal", "Negociação em andamento", true},
		{"proposal", "CONTRATO assinado", true},
		{"positive", "Atendimento excelente, parabéns", true},
		{"complaint", "Cliente insatisfeito com o prazo", true},
		{"complaint", "Tudo certo", false},
		{"competitor", "Fechou com concorrente", true},
	}

	patterns := map[string]interface{ MatchString(string) bool }{
		"visit":      visitPattern,
		"proposal":   proposalPattern,
		"positive":   positivePattern,
		"complaint":  complaintPattern,
		"competitor": competitorPattern,
	}

	for _, tt := range tests {
		if got := patterns[tt.pattern].MatchString(tt.text); got != tt.want {
			t.Errorf("%s pattern on %q = %v, want %v", tt.pattern, tt.text, got, tt.want)
		}
	}
}
