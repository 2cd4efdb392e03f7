// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/leadleague/leadleague/internal/models"
)

// eventTypeMap translates provider event types onto the canonical activity
// types. Unlisted types collapse into ActivityOther; nothing is dropped at
// normalization time.
var eventTypeMap = map[string]models.ActivityType{
	"lead_status_changed":   models.ActivityStatusChange,
	"incoming_chat_message": models.ActivityMessageReceived,
	"outgoing_chat_message": models.ActivityMessageSent,
	"task_completed":        models.ActivityTaskCompleted,
	"common_note_added":     models.ActivityNote,
	"note_created":          models.ActivityNote,
}

// mapEventType returns the canonical type for a provider event type.
func mapEventType(t string) models.ActivityType {
	if mapped, ok := eventTypeMap[t]; ok {
		return mapped
	}
	return models.ActivityOther
}

// epochTime converts provider epoch seconds to a timestamp in loc. Zero
// input yields the zero time, not the epoch.
func epochTime(sec int64, loc *time.Location) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).In(loc)
}

// eventID maps a provider event id onto a stable int64. Numeric ids parse
// directly; opaque string ids hash via FNV-1a so the same event always maps
// to the same identifier.
func eventID(id string) int64 {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	//nolint:gosec // identifier folding, sign is irrelevant
	return int64(h.Sum64())
}

// normalizeUser converts a wire user to a Broker. Inactive accounts return
// false; callers skip them.
func (c *Client) normalizeUser(u wireUser) (models.Broker, bool) {
	if !u.Rights.IsActive {
		return models.Broker{}, false
	}
	role := models.RoleAgent
	if u.Rights.IsAdmin {
		role = models.RoleAdmin
	}
	return models.Broker{
		ID:        u.ID,
		TenantID:  c.cfg.TenantID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      role,
		AvatarURL: u.AvatarURL,
		CreatedAt: epochTime(u.CreatedAt, c.loc),
	}, true
}

// normalizeLead converts a wire lead. stages maps provider status ids to
// stage names; unknown ids keep an empty stage. UpdatedAt is floored to
// CreatedAt so downstream duration math never goes negative.
func (c *Client) normalizeLead(l wireLead, stages map[int64]string) models.Lead {
	created := epochTime(l.CreatedAt, c.loc)
	updated := epochTime(l.UpdatedAt, c.loc)
	if updated.Before(created) {
		updated = created
	}
	contact := ""
	if len(l.Embedded.Contacts) > 0 {
		contact = l.Embedded.Contacts[0].Name
	}
	return models.Lead{
		ID:          l.ID,
		TenantID:    c.cfg.TenantID,
		BrokerID:    l.ResponsibleUserID,
		Name:        l.Name,
		ContactName: contact,
		Value:       l.Price,
		StatusID:    l.StatusID,
		PipelineID:  l.PipelineID,
		Stage:       stages[l.StatusID],
		Status:      models.StatusFromID(l.StatusID),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
}

// normalizeEvent converts a wire event to an Activity. Status-change events
// carry the stage names before/after; messages and notes carry their text.
func (c *Client) normalizeEvent(e wireEvent, stages map[int64]string) models.Activity {
	var leadID int64
	if e.EntityType == "lead" || e.EntityType == "leads" {
		leadID = e.EntityID
	}

	prev := extractValue(e.ValueBefore, stages)
	next := extractValue(e.ValueAfter, stages)

	a := models.NewActivity(
		eventID(e.ID),
		leadID,
		e.CreatedBy,
		mapEventType(e.Type),
		prev,
		next,
		epochTime(e.CreatedAt, c.loc),
	)
	a.TenantID = c.cfg.TenantID
	return a
}

// extractValue flattens the first meaningful entry of an event value list.
func extractValue(values []eventValue, stages map[int64]string) string {
	for _, v := range values {
		switch {
		case v.LeadStatus != nil:
			if name, ok := stages[v.LeadStatus.ID]; ok {
				return name
			}
			return strconv.FormatInt(v.LeadStatus.ID, 10)
		case v.Message != nil:
			return v.Message.Text
		case v.Note != nil:
			return v.Note.Text
		}
	}
	return ""
}
