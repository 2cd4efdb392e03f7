// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

// Wire types for the provider's v4 REST API. Collections always arrive
// under an "_embedded" envelope; an empty page is a 204 with no body.

type usersPage struct {
	Embedded struct {
		Users []wireUser `json:"users"`
	} `json:"_embedded"`
}

type wireUser struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Rights struct {
		IsAdmin  bool `json:"is_admin"`
		IsActive bool `json:"is_active"`
	} `json:"rights"`
	AvatarURL string `json:"avatar_url"`
	CreatedAt int64  `json:"created_at"`
}

type leadsPage struct {
	Embedded struct {
		Leads []wireLead `json:"leads"`
	} `json:"_embedded"`
}

type wireLead struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Price             float64 `json:"price"`
	ResponsibleUserID int64  `json:"responsible_user_id"`
	StatusID          int64  `json:"status_id"`
	PipelineID        int64  `json:"pipeline_id"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
	Embedded          struct {
		Contacts []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"contacts"`
	} `json:"_embedded"`
}

type eventsPage struct {
	Embedded struct {
		Events []wireEvent `json:"events"`
	} `json:"_embedded"`
}

// wireEvent ids are opaque strings on this API version; normalization maps
// them onto stable int64 identifiers.
type wireEvent struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	EntityID    int64        `json:"entity_id"`
	EntityType  string       `json:"entity_type"`
	CreatedBy   int64        `json:"created_by"`
	CreatedAt   int64        `json:"created_at"`
	ValueAfter  []eventValue `json:"value_after"`
	ValueBefore []eventValue `json:"value_before"`
}

type eventValue struct {
	LeadStatus *struct {
		ID         int64 `json:"id"`
		PipelineID int64 `json:"pipeline_id"`
	} `json:"lead_status,omitempty"`
	Note *struct {
		Text string `json:"text"`
	} `json:"note,omitempty"`
	Message *struct {
		Text string `json:"text"`
	} `json:"message,omitempty"`
}

type pipelinesPage struct {
	Embedded struct {
		Pipelines []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Embedded struct {
				Statuses []struct {
					ID   int64  `json:"id"`
					Name string `json:"name"`
				} `json:"statuses"`
			} `json:"_embedded"`
		} `json:"pipelines"`
	} `json:"_embedded"`
}
