// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package models

import "time"

// ActivityType is the canonical event classification. Provider event types
// that have no mapping collapse into ActivityOther rather than being dropped.
type ActivityType string

const (
	ActivityMessageSent     ActivityType = "message_sent"
	ActivityMessageReceived ActivityType = "message_received"
	ActivityStatusChange    ActivityType = "status_change"
	ActivityNote            ActivityType = "note"
	ActivityTaskCompleted   ActivityType = "task_completed"
	ActivityOther           ActivityType = "other"
)

// Activity is a single CRM event attributed to a broker, optionally tied to
// a lead. PrevValue and NewValue carry the stage names for status changes and
// the message/note text for messages and notes.
type Activity struct {
	ID        int64        `json:"id"`
	TenantID  string       `json:"tenant_id"`
	LeadID    int64        `json:"lead_id"`
	BrokerID  int64        `json:"broker_id"`
	Type      ActivityType `json:"type"`
	PrevValue string       `json:"prev_value,omitempty"`
	NewValue  string       `json:"new_value,omitempty"`
	CreatedAt time.Time    `json:"created_at"`

	// DayOfWeek and Hour are derived from CreatedAt in the tenant's
	// location; kept denormalized for activity heatmap queries.
	DayOfWeek time.Weekday `json:"day_of_week"`
	Hour      int          `json:"hour"`
}

// NewActivity fills the derived time fields from the created timestamp.
func NewActivity(id, leadID, brokerID int64, typ ActivityType, prev, next string, createdAt time.Time) Activity {
	return Activity{
		ID:        id,
		LeadID:    leadID,
		BrokerID:  brokerID,
		Type:      typ,
		PrevValue: prev,
		NewValue:  next,
		CreatedAt: createdAt,
		DayOfWeek: createdAt.Weekday(),
		Hour:      createdAt.Hour(),
	}
}
