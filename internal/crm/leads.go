// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"context"
	"strconv"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/models"
)

// Leads fetches the configured pipeline's leads with embedded contacts.
// The stage map is resolved first so every lead carries its stage name.
//
// Filtered fetches can interleave empty and non-empty pages, so pagination
// stops only after EmptyPageStreak consecutive empty pages, or at the
// MaxPages cost ceiling.
func (c *Client) Leads(ctx context.Context) ([]models.Lead, error) {
	stages, err := c.StageNames(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Lead
	emptyStreak := 0

	for page := 1; page <= c.cfg.MaxPages; page++ {
		q := c.pageQuery(page)
		q.Set("with", "contacts")
		if c.cfg.PipelineID != 0 {
			q.Set("filter[pipeline_id]", strconv.FormatInt(c.cfg.PipelineID, 10))
		}

		p, ok, err := getPage[leadsPage](ctx, c, "leads", q)
		if err != nil {
			logging.Error().Err(err).Int("page", page).Str("tenant", c.cfg.TenantID).Msg("lead fetch failed")
			return nil, err
		}
		if !ok || len(p.Embedded.Leads) == 0 {
			emptyStreak++
			if emptyStreak >= c.cfg.EmptyPageStreak {
				break
			}
			continue
		}
		emptyStreak = 0

		for _, l := range p.Embedded.Leads {
			if c.cfg.PipelineID != 0 && l.PipelineID != c.cfg.PipelineID {
				continue
			}
			out = append(out, c.normalizeLead(l, stages))
		}
		if len(p.Embedded.Leads) < c.cfg.PageLimit {
			break
		}
	}

	logging.Debug().Int("leads", len(out)).Str("tenant", c.cfg.TenantID).Msg("leads fetched")
	return out, nil
}
