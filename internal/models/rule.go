// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package models

import "strings"

// Rule is one scoring rule loaded from the rule table. Points may be
// negative; the scoring engine clamps the aggregate, never the rule.
type Rule struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Points int    `json:"points"`
	Active bool   `json:"active"`
}

// accentFold maps the accented runes that occur in Portuguese rule names to
// their ASCII base. Anything outside this table that is not alphanumeric
// becomes an underscore.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'ã': 'a', 'â': 'a', 'ä': 'a',
	'é': 'e', 'ê': 'e', 'è': 'e', 'ë': 'e',
	'í': 'i', 'î': 'i', 'ì': 'i',
	'ó': 'o', 'ô': 'o', 'õ': 'o', 'ò': 'o', 'ö': 'o',
	'ú': 'u', 'û': 'u', 'ù': 'u', 'ü': 'u',
	'ç': 'c',
}

// SlugFromName derives the counter column slug for a rule name:
// lowercase, accents folded, runs of non-alphanumerics collapsed to a
// single underscore. "Leads Respondidos em 1h" -> "leads_respondidos_em_1h".
func SlugFromName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		if folded, ok := accentFold[r]; ok {
			r = folded
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
