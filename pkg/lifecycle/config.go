// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package lifecycle

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/elastic/edge-credentials/pkg/certificates"
	"github.com/elastic/edge-credentials/pkg/csr"
)

const (
	DefaultApprovalTimeout = 600 * time.Second
	DefaultTrustAnchorPath = "/var/run/secrets/kubernetes.io/serviceaccount/ca.crt"
)

// Config is the immutable configuration of a Manager.
type Config struct {
	Identity Identity
	// TrustAnchorPath is the PEM CA certificate every bundle must chain up to.
	TrustAnchorPath string
	ApprovalTimeout time.Duration
	PollInterval    time.Duration
	// CSRName overrides Identity.DefaultCSRName.
	CSRName string
	// Organization overrides certificates.DefaultOrganization.
	Organization string
	// KeyBits overrides certificates.DefaultKeyBits.
	KeyBits int
}

// Validate returns every configuration error found.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Identity.Name == "" {
		result = multierror.Append(result, errors.New("identity name must not be empty"))
	}
	if c.Identity.NamespaceKey == "" {
		result = multierror.Append(result, errors.New("identity namespace key must not be empty"))
	}
	if c.TrustAnchorPath == "" {
		result = multierror.Append(result, errors.New("trust anchor path must not be empty"))
	}
	if c.ApprovalTimeout <= 0 {
		result = multierror.Append(result, errors.Errorf("approval timeout must be positive, got %s", c.ApprovalTimeout))
	}
	if c.PollInterval < 0 {
		result = multierror.Append(result, errors.Errorf("poll interval must not be negative, got %s", c.PollInterval))
	}
	if c.KeyBits != 0 && c.KeyBits < certificates.MinKeyBits {
		result = multierror.Append(result, errors.Errorf("key size must be at least %d bits, got %d", certificates.MinKeyBits, c.KeyBits))
	}
	return result.ErrorOrNil()
}

func (c Config) csrName() string {
	if c.CSRName != "" {
		return c.CSRName
	}
	return c.Identity.DefaultCSRName()
}

func (c Config) organization() string {
	if c.Organization != "" {
		return c.Organization
	}
	return certificates.DefaultOrganization
}

func (c Config) keyBits() int {
	if c.KeyBits != 0 {
		return c.KeyBits
	}
	return certificates.DefaultKeyBits
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return csr.DefaultPollInterval
}
