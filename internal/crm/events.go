// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/models"
)

// pageOutcome is the result of fetching one event page inside a chunk.
type pageOutcome struct {
	events []models.Activity
	empty  bool
	err    error
}

// Events fetches the activity stream for the lookback window. Pages are
// fetched in chunks of ChunkSize with Workers parallel fetchers per chunk;
// results merge in page order so the caller sees a stable stream.
//
// A failed page inside a chunk is retried once after backoff when the
// failure is rate-limit shaped; otherwise it is logged and contributes
// nothing. Pagination stops when a whole chunk comes back empty, when a
// short page marks the end of the stream, or at the MaxPages ceiling.
func (c *Client) Events(ctx context.Context) ([]models.Activity, error) {
	stages, err := c.StageNames(ctx)
	if err != nil {
		if IsBlocked(err) {
			return nil, err
		}
		// Stage names only decorate status-change values; fetch events
		// without them rather than failing the whole pass.
		logging.Warn().Err(err).Str("tenant", c.cfg.TenantID).Msg("stage map unavailable, events keep raw status ids")
		stages = map[int64]string{}
	}

	from := time.Now().In(c.loc).Add(-c.cfg.EventLookback)

	var out []models.Activity
	for first := 1; first <= c.cfg.MaxPages; first += c.cfg.ChunkSize {
		last := first + c.cfg.ChunkSize - 1
		if last > c.cfg.MaxPages {
			last = c.cfg.MaxPages
		}

		outcomes := c.fetchChunk(ctx, first, last, from, stages)

		chunkEmpty := true
		sawShortPage := false
		for i, oc := range outcomes {
			page := first + i
			if oc.err != nil {
				if IsBlocked(oc.err) {
					return nil, oc.err
				}
				logging.Error().Err(oc.err).Int("page", page).Str("tenant", c.cfg.TenantID).Msg("event page failed, continuing without it")
				continue
			}
			if oc.empty {
				continue
			}
			chunkEmpty = false
			out = append(out, oc.events...)
			if len(oc.events) < c.cfg.PageLimit {
				sawShortPage = true
			}
		}
		if chunkEmpty || sawShortPage {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	logging.Debug().Int("activities", len(out)).Str("tenant", c.cfg.TenantID).Msg("events fetched")
	return out, nil
}

// fetchChunk fetches pages [first, last] with bounded parallelism and
// returns outcomes indexed by page offset.
func (c *Client) fetchChunk(ctx context.Context, first, last int, from time.Time, stages map[int64]string) []pageOutcome {
	outcomes := make([]pageOutcome, last-first+1)

	pages := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < c.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				outcomes[page-first] = c.fetchEventPage(ctx, page, from, stages)
			}
		}()
	}
	for page := first; page <= last; page++ {
		pages <- page
	}
	close(pages)
	wg.Wait()

	return outcomes
}

// fetchEventPage fetches one page, retrying once after backoff when the
// failure is rate-limit shaped.
func (c *Client) fetchEventPage(ctx context.Context, page int, from time.Time, stages map[int64]string) pageOutcome {
	oc := c.fetchEventPageOnce(ctx, page, from, stages)
	if oc.err != nil && IsRateLimited(oc.err) {
		if err := c.sleep(ctx, c.backoff.next()); err != nil {
			return pageOutcome{err: err}
		}
		oc = c.fetchEventPageOnce(ctx, page, from, stages)
	}
	return oc
}

func (c *Client) fetchEventPageOnce(ctx context.Context, page int, from time.Time, stages map[int64]string) pageOutcome {
	q := c.pageQuery(page)
	q.Set("filter[created_at][from]", strconv.FormatInt(from.Unix(), 10))
	addEventTypeFilter(q)

	p, ok, err := getPage[eventsPage](ctx, c, "events", q)
	if err != nil {
		return pageOutcome{err: err}
	}
	if !ok || len(p.Embedded.Events) == 0 {
		return pageOutcome{empty: true}
	}

	events := make([]models.Activity, 0, len(p.Embedded.Events))
	for _, e := range p.Embedded.Events {
		events = append(events, c.normalizeEvent(e, stages))
	}
	return pageOutcome{events: events}
}

// addEventTypeFilter restricts the stream to the event types scoring
// understands; everything else is noise at provider scale.
func addEventTypeFilter(q url.Values) {
	types := []string{
		"lead_status_changed",
		"incoming_chat_message",
		"outgoing_chat_message",
		"task_completed",
		"common_note_added",
	}
	for i, t := range types {
		q.Set("filter[type]["+strconv.Itoa(i)+"]", t)
	}
}
