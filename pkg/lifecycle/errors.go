// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package lifecycle

import (
	"fmt"

	"github.com/elastic/edge-credentials/pkg/csr"
)

var (
	ErrApprovalDenied  = csr.ErrApprovalDenied
	ErrApprovalTimeout = csr.ErrApprovalTimeout
	ErrCancelled       = csr.ErrCancelled
)

// MissingTrustAnchorError is returned when the trust anchor cannot be read or holds no certificate.
type MissingTrustAnchorError struct {
	Path string
	Err  error
}

func (e *MissingTrustAnchorError) Error() string {
	return fmt.Sprintf("trust anchor %s unavailable: %v", e.Path, e.Err)
}

func (e *MissingTrustAnchorError) Unwrap() error {
	return e.Err
}

// InvalidBundleError is returned when a newly issued bundle fails validation.
type InvalidBundleError struct {
	Reason string
}

func (e *InvalidBundleError) Error() string {
	return "invalid credentials: " + e.Reason
}

// StepError reports the state a run failed in.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
