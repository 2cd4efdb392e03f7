// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"context"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/models"
)

// Users fetches every active account, paginating until the provider returns
// an empty or short page. Inactive accounts are skipped during
// normalization.
func (c *Client) Users(ctx context.Context) ([]models.Broker, error) {
	var out []models.Broker

	for page := 1; page <= c.cfg.MaxPages; page++ {
		p, ok, err := getPage[usersPage](ctx, c, "users", c.pageQuery(page))
		if err != nil {
			logging.Error().Err(err).Int("page", page).Str("tenant", c.cfg.TenantID).Msg("user fetch failed")
			return nil, err
		}
		if !ok || len(p.Embedded.Users) == 0 {
			break
		}
		for _, u := range p.Embedded.Users {
			if b, keep := c.normalizeUser(u); keep {
				out = append(out, b)
			}
		}
		if len(p.Embedded.Users) < c.cfg.PageLimit {
			break
		}
	}

	logging.Debug().Int("brokers", len(out)).Str("tenant", c.cfg.TenantID).Msg("users fetched")
	return out, nil
}
