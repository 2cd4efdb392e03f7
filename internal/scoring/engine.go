// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package scoring

import (
	"regexp"
	"sort"
	"time"

	"github.com/leadleague/leadleague/internal/models"
)

// Evaluation windows. All durations measure against Options.Now.
const (
	firstResponseWindow = time.Hour
	quickReplyWindow    = 3 * time.Hour
	idleLeadWindow      = 24 * time.Hour
	ignoredLeadWindow   = 48 * time.Hour
	staleLeadWindow     = 5 * 24 * time.Hour

	alertResponseSlow     = 12 * time.Hour
	alertResponseVerySlow = 18 * time.Hour

	defaultIdleWindow = 3 * time.Hour
)

// Options carries the evaluation instant and tunables for one pass.
type Options struct {
	// Now is the evaluation instant. Zero means time.Now in Location.
	Now time.Time

	// Location resolves calendar-day and business-hour comparisons.
	// Nil means the location of Now.
	Location *time.Location

	// IdleWindow is how long a broker may go without any activity during
	// business hours before being flagged idle. Default 3h.
	IdleWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		if !o.Now.IsZero() {
			o.Location = o.Now.Location()
		} else {
			o.Location = time.Local
		}
	}
	if o.Now.IsZero() {
		o.Now = time.Now().In(o.Location)
	} else {
		o.Now = o.Now.In(o.Location)
	}
	if o.IdleWindow <= 0 {
		o.IdleWindow = defaultIdleWindow
	}
	return o
}

// indexes holds the per-pass lookup maps. Built once; every predicate after
// that is a map hit plus a bounded scan.
type indexes struct {
	leadsByBroker      map[int64][]models.Lead
	activitiesByLead   map[int64][]models.Activity // sorted by CreatedAt
	activitiesByBroker map[int64][]models.Activity // sorted by CreatedAt
}

func buildIndexes(leads []models.Lead, activities []models.Activity) *indexes {
	idx := &indexes{
		leadsByBroker:      make(map[int64][]models.Lead),
		activitiesByLead:   make(map[int64][]models.Activity),
		activitiesByBroker: make(map[int64][]models.Activity),
	}
	for _, l := range leads {
		idx.leadsByBroker[l.BrokerID] = append(idx.leadsByBroker[l.BrokerID], l)
	}
	for _, a := range activities {
		if a.LeadID != 0 {
			idx.activitiesByLead[a.LeadID] = append(idx.activitiesByLead[a.LeadID], a)
		}
		if a.BrokerID != 0 {
			idx.activitiesByBroker[a.BrokerID] = append(idx.activitiesByBroker[a.BrokerID], a)
		}
	}
	for _, m := range []map[int64][]models.Activity{idx.activitiesByLead, idx.activitiesByBroker} {
		for _, acts := range m {
			sort.Slice(acts, func(i, j int) bool { return acts[i].CreatedAt.Before(acts[j].CreatedAt) })
		}
	}
	return idx
}

// firstResponse returns the earliest outbound message on a lead.
func (idx *indexes) firstResponse(leadID int64) (time.Time, bool) {
	for _, a := range idx.activitiesByLead[leadID] {
		if a.Type == models.ActivityMessageSent {
			return a.CreatedAt, true
		}
	}
	return time.Time{}, false
}

// lastTouch returns the most recent activity on a lead, falling back to the
// lead's own update time.
func (idx *indexes) lastTouch(l models.Lead) time.Time {
	acts := idx.activitiesByLead[l.ID]
	if len(acts) == 0 {
		return l.UpdatedAt
	}
	last := acts[len(acts)-1].CreatedAt
	if l.UpdatedAt.After(last) {
		return l.UpdatedAt
	}
	return last
}

// Score evaluates every rule for every agent broker and returns one record
// per broker, ordered by total descending. Admin accounts are excluded;
// brokers with no qualifying data still get a zero-filled row.
func Score(brokers []models.Broker, leads []models.Lead, activities []models.Activity, rules []models.Rule, opts Options) []models.ScoreRecord {
	opts = opts.withDefaults()
	idx := buildIndexes(leads, activities)

	slugs := make([]string, 0, len(rules))
	for _, r := range rules {
		slug := r.Slug
		if slug == "" {
			slug = models.SlugFromName(r.Name)
		}
		slugs = append(slugs, slug)
	}

	var out []models.ScoreRecord
	for _, b := range brokers {
		if !b.IsAgent() {
			continue
		}
		rec := models.NewScoreRecord(b, slugs, opts.Now)

		total := 0
		for i, r := range rules {
			if !r.Active {
				continue
			}
			count := evalPredicate(KindForRule(r), b, idx, opts)
			rec.Counters[slugs[i]] = count
			total += count * r.Points
		}
		if total < 0 {
			total = 0
		}
		rec.Total = total

		rec.RespondedAfter18h = countSlowResponses(b, idx, alertResponseVerySlow)
		rec.ResponseOver12h = countSlowResponses(b, idx, alertResponseSlow)
		rec.StaleFiveDays = countStaleLeads(b, idx, opts)
		rec.Idle = isIdle(b, idx, opts)

		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].BrokerID < out[j].BrokerID
	})
	return out
}

// evalPredicate dispatches one rule evaluation for one broker.
//
//nolint:gocyclo // one arm per predicate kind, each trivial
func evalPredicate(k PredicateKind, b models.Broker, idx *indexes, opts Options) int {
	switch k {
	case KindRespondedWithinHour:
		return countFastResponses(b, idx, firstResponseWindow)

	case KindVisited:
		return countStageMatches(b, idx, visitPattern)

	case KindProposalSent:
		return countStageMatches(b, idx, proposalPattern)

	case KindSaleClosed:
		n := 0
		for _, l := range idx.leadsByBroker[b.ID] {
			if l.Status == models.LeadStatusWon {
				n++
			}
		}
		return n

	case KindSameDayUpdate:
		n := 0
		for _, l := range idx.leadsByBroker[b.ID] {
			if l.UpdatedAt.After(l.CreatedAt) && sameDay(l.CreatedAt, l.UpdatedAt, opts.Location) {
				n++
			}
		}
		return n

	case KindQuickReply:
		return countQuickReplies(b, idx, quickReplyWindow)

	case KindAllTodayResponded:
		return allTodayResponded(b, idx, opts)

	case KindCompleteRegistration:
		n := 0
		for _, l := range idx.leadsByBroker[b.ID] {
			if l.Name != "" && l.ContactName != "" && l.Value > 0 {
				n++
			}
		}
		return n

	case KindPostSaleFollowUp:
		n := 0
		for _, l := range idx.leadsByBroker[b.ID] {
			if l.Status != models.LeadStatusWon {
				continue
			}
			for _, a := range idx.activitiesByLead[l.ID] {
				if a.CreatedAt.After(l.UpdatedAt) {
					n++
					break
				}
			}
		}
		return n

	case KindPositiveFeedback:
		return countTextMatches(b, idx, positivePattern)

	case KindComplaints:
		return countTextMatches(b, idx, complaintPattern)

	case KindIdle24h:
		return countNeglectedLeads(b, idx, opts, idleLeadWindow)

	case KindIgnored48h:
		return countNeglectedLeads(b, idx, opts, ignoredLeadWindow)

	case KindLostToCompetitor:
		n := 0
		for _, l := range idx.leadsByBroker[b.ID] {
			if l.Status != models.LeadStatusLost {
				continue
			}
			if competitorPattern.MatchString(l.Stage) || hasStatusChangeMatch(idx.activitiesByLead[l.ID], competitorPattern) {
				n++
			}
		}
		return n

	default:
		return 0
	}
}

// countFastResponses counts the broker's leads whose first outbound message
// landed within window of lead creation.
func countFastResponses(b models.Broker, idx *indexes, window time.Duration) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		if first, ok := idx.firstResponse(l.ID); ok && first.Sub(l.CreatedAt) <= window {
			n++
		}
	}
	return n
}

// countSlowResponses counts leads whose first response took longer than
// threshold. Leads never responded to do not count here; the neglect
// predicates cover them.
func countSlowResponses(b models.Broker, idx *indexes, threshold time.Duration) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		if first, ok := idx.firstResponse(l.ID); ok && first.Sub(l.CreatedAt) > threshold {
			n++
		}
	}
	return n
}

// countStageMatches counts unique leads with a status change whose new
// stage matches the pattern.
func countStageMatches(b models.Broker, idx *indexes, pattern *regexp.Regexp) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		if hasStatusChangeMatch(idx.activitiesByLead[l.ID], pattern) {
			n++
		}
	}
	return n
}

func hasStatusChangeMatch(acts []models.Activity, pattern *regexp.Regexp) bool {
	for _, a := range acts {
		if a.Type == models.ActivityStatusChange && pattern.MatchString(a.NewValue) {
			return true
		}
	}
	return false
}

// countTextMatches counts notes on the broker's leads matching the pattern.
// Chat messages do not count; feedback and complaints only register once
// recorded as a note.
func countTextMatches(b models.Broker, idx *indexes, pattern *regexp.Regexp) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		for _, a := range idx.activitiesByLead[l.ID] {
			if a.Type == models.ActivityNote && pattern.MatchString(a.NewValue) {
				n++
			}
		}
	}
	return n
}

// countQuickReplies counts inbound->outbound message pairs on the broker's
// leads answered within window.
func countQuickReplies(b models.Broker, idx *indexes, window time.Duration) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		acts := idx.activitiesByLead[l.ID]
		var pending *time.Time
		for i := range acts {
			switch acts[i].Type {
			case models.ActivityMessageReceived:
				t := acts[i].CreatedAt
				pending = &t
			case models.ActivityMessageSent:
				if pending != nil && acts[i].CreatedAt.Sub(*pending) <= window {
					n++
				}
				pending = nil
			}
		}
	}
	return n
}

// allTodayResponded returns 1 when the broker received at least one lead
// today and every one of today's leads has an outbound message.
func allTodayResponded(b models.Broker, idx *indexes, opts Options) int {
	today := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		if !sameDay(l.CreatedAt, opts.Now, opts.Location) {
			continue
		}
		today++
		if _, ok := idx.firstResponse(l.ID); !ok {
			return 0
		}
	}
	if today == 0 {
		return 0
	}
	return 1
}

// countNeglectedLeads counts open leads untouched for longer than window.
func countNeglectedLeads(b models.Broker, idx *indexes, opts Options, window time.Duration) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		if l.Closed() {
			continue
		}
		if opts.Now.Sub(idx.lastTouch(l)) > window {
			n++
		}
	}
	return n
}

// countStaleLeads counts open leads with no stage change for the stale
// window, measured from the last status change or lead creation.
func countStaleLeads(b models.Broker, idx *indexes, opts Options) int {
	n := 0
	for _, l := range idx.leadsByBroker[b.ID] {
		if l.Closed() {
			continue
		}
		lastChange := l.CreatedAt
		for _, a := range idx.activitiesByLead[l.ID] {
			if a.Type == models.ActivityStatusChange && a.CreatedAt.After(lastChange) {
				lastChange = a.CreatedAt
			}
		}
		if opts.Now.Sub(lastChange) > staleLeadWindow {
			n++
		}
	}
	return n
}

// sameDay reports whether two instants fall on the same calendar day in loc.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
