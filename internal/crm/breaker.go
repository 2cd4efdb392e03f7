// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package crm

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/leadleague/leadleague/internal/logging"
	"github.com/leadleague/leadleague/internal/metrics"
	"github.com/leadleague/leadleague/internal/models"
)

// BreakerClient wraps Client with a circuit breaker so a provider outage
// fails fast instead of burning the request budget on doomed calls.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the wrapped client directly.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient builds the breaker around an existing client.
// Configuration: 3 concurrent probes in half-open, 1 minute count window,
// 2 minute recovery timeout, trips at 60% failures over at least 10
// requests. Blocked-account errors never count as breaker failures; the
// provider is healthy, the tenant is not.
func NewBreakerClient(client *Client) *BreakerClient {
	name := "crm-" + client.TenantID()

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("opening circuit")
				return true
			}
			return false
		},

		IsSuccessful: func(err error) bool {
			// Tenant-side failures do not indicate provider trouble.
			return err == nil || IsBlocked(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &BreakerClient{client: client, cb: cb, name: name}
}

// TenantID returns the tenant this client is bound to.
func (bc *BreakerClient) TenantID() string {
	return bc.client.TenantID()
}

// execute runs one call through the breaker and records the outcome.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", bc.name).Msg("request rejected by open circuit")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return result, nil
}

// castResult type-asserts the breaker result with error checking.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Users fetches brokers with circuit breaker protection.
func (bc *BreakerClient) Users(ctx context.Context) ([]models.Broker, error) {
	return castResult[[]models.Broker](bc.execute(func() (interface{}, error) {
		return bc.client.Users(ctx)
	}))
}

// Leads fetches leads with circuit breaker protection.
func (bc *BreakerClient) Leads(ctx context.Context) ([]models.Lead, error) {
	return castResult[[]models.Lead](bc.execute(func() (interface{}, error) {
		return bc.client.Leads(ctx)
	}))
}

// Events fetches activities with circuit breaker protection.
func (bc *BreakerClient) Events(ctx context.Context) ([]models.Activity, error) {
	return castResult[[]models.Activity](bc.execute(func() (interface{}, error) {
		return bc.client.Events(ctx)
	}))
}

// StageNames fetches the stage map with circuit breaker protection.
func (bc *BreakerClient) StageNames(ctx context.Context) (map[int64]string, error) {
	return castResult[map[int64]string](bc.execute(func() (interface{}, error) {
		return bc.client.StageNames(ctx)
	}))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
