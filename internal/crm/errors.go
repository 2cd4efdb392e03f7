// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a CRM failure. The retry policy table keys off the kind,
// so every error the client surfaces carries exactly one.
type Kind int

const (
	// KindTransient covers transport failures and 5xx responses other than
	// 504: retried a fixed number of times with a flat delay.
	KindTransient Kind = iota

	// KindRateLimited covers 429 and 504 responses: retried with
	// exponential backoff until the attempt budget is exhausted.
	KindRateLimited

	// KindBlocked covers 401/403 responses. The account is blocked or the
	// token revoked; retrying makes it worse. Fatal for the tenant pass.
	KindBlocked

	// KindConfig covers client misconfiguration (bad base URL, missing
	// token). Never retried.
	KindConfig

	// KindData covers undecodable or structurally invalid payloads.
	// Never retried; the payload will not improve.
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindBlocked:
		return "blocked"
	case KindConfig:
		return "config"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the CRM client.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int

	// RetryAfter is the server-requested wait from a Retry-After header,
	// zero when absent.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("crm %s: %s (status %d): %v", e.Endpoint, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("crm %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from an error chain. Unclassified errors
// report KindTransient so callers err on the side of retrying.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// IsBlocked reports whether the error chain contains a blocked-account
// failure. Callers must stop the tenant pass when this is true.
func IsBlocked(err error) bool {
	return hasKind(err, KindBlocked)
}

// IsRateLimited reports whether the error chain contains a rate-limit
// failure.
func IsRateLimited(err error) bool {
	return hasKind(err, KindRateLimited)
}

func hasKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}

// retryPolicy describes how one failure kind is retried.
type retryPolicy struct {
	// maxAttempts counts the initial try. 1 means no retry.
	maxAttempts int

	// exponential selects backoff growth; false means flatDelay between
	// attempts.
	exponential bool

	flatDelay time.Duration
}

// policies is the single source of truth for retry behavior per failure
// kind. Handlers look up the policy instead of switch-casing on status
// codes at every call site.
var policies = map[Kind]retryPolicy{
	KindRateLimited: {maxAttempts: 6, exponential: true},
	KindTransient:   {maxAttempts: 3, flatDelay: 2 * time.Second},
	KindBlocked:     {maxAttempts: 1},
	KindConfig:      {maxAttempts: 1},
	KindData:        {maxAttempts: 1},
}

// policyFor returns the retry policy for a failure kind.
func policyFor(k Kind) retryPolicy {
	if p, ok := policies[k]; ok {
		return p
	}
	return policies[KindTransient]
}

// kindForStatus classifies an HTTP response status.
func kindForStatus(status int) Kind {
	switch {
	case status == 429 || status == 504:
		return KindRateLimited
	case status == 401 || status == 403:
		return KindBlocked
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindData
	default:
		return KindTransient
	}
}
