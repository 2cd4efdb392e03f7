// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints declared on the config tags
// plus the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidationError(err)
	}

	if _, err := time.LoadLocation(c.CRM.Timezone); err != nil {
		return fmt.Errorf("crm.timezone %q is not a valid IANA name: %w", c.CRM.Timezone, err)
	}

	seen := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if seen[t.ID] {
			return fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = true
		if t.Active && t.BaseURL == "" && t.Subdomain == "" {
			return fmt.Errorf("tenant %q: active tenants need base_url or subdomain", t.ID)
		}
		if t.Active && t.Token == "" {
			return fmt.Errorf("tenant %q: active tenants need a token", t.ID)
		}
	}
	return nil
}

// describeValidationError rewrites the first validator error into something
// actionable, naming the offending field path and constraint.
func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("config field %s fails constraint %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
}
