// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package csr

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/elastic/edge-credentials/pkg/certificates"
)

// Phase is the approval state of a submitted certificate request.
type Phase string

const (
	PhasePending  Phase = "Pending"
	PhaseApproved Phase = "Approved"
	PhaseDenied   Phase = "Denied"
	PhaseNotFound Phase = "NotFound"
)

// Handle identifies a submitted request.
type Handle struct {
	Name        string
	SubmittedAt time.Time
}

// Status is the state of a request as reported by the CA.
type Status struct {
	Phase Phase
	// Certificate is the PEM certificate chain, only set once Approved and issued.
	Certificate []byte
	// Reason is set for denied requests.
	Reason string
}

// Client submits certificate requests to a CA and follows their approval.
type Client interface {
	// Submit creates the request named name, replacing any previous request with the same name.
	Submit(ctx context.Context, name string, req *certificates.CertificateRequest) (Handle, error)
	// Status returns the current approval state of the request.
	Status(ctx context.Context, h Handle) (Status, error)
	// Delete removes the request. Deleting a request that does not exist is not an error.
	Delete(ctx context.Context, h Handle) error
}

var (
	ErrApprovalDenied  = errors.New("certificate request denied")
	ErrApprovalTimeout = errors.New("timed out waiting for certificate request approval")
	ErrCancelled       = errors.New("cancelled")
)

// ApprovalDeniedError is returned when the CA denies, or fails to sign, a request.
type ApprovalDeniedError struct {
	Name   string
	Reason string
}

func (e *ApprovalDeniedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("certificate request %s denied", e.Name)
	}
	return fmt.Sprintf("certificate request %s denied: %s", e.Name, e.Reason)
}

func (e *ApprovalDeniedError) Is(target error) bool {
	return target == ErrApprovalDenied
}

// ApprovalTimeoutError is returned when a request is still not approved at the end of the approval window.
type ApprovalTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("certificate request %s not approved after %s", e.Name, e.Timeout)
}

func (e *ApprovalTimeoutError) Is(target error) bool {
	return target == ErrApprovalTimeout
}
