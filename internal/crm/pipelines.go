// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"context"
	"net/url"
)

// StageNames fetches the pipeline catalog and flattens every status id to
// its stage name. Status ids are globally unique across pipelines on this
// provider, so one flat map suffices.
func (c *Client) StageNames(ctx context.Context) (map[int64]string, error) {
	p, ok, err := getPage[pipelinesPage](ctx, c, "leads/pipelines", url.Values{})
	if err != nil {
		return nil, err
	}
	stages := make(map[int64]string)
	if !ok {
		return stages, nil
	}
	for _, pipe := range p.Embedded.Pipelines {
		for _, st := range pipe.Embedded.Statuses {
			stages[st.ID] = st.Name
		}
	}
	return stages, nil
}
