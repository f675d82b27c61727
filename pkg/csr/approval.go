// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package csr

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
)

// DefaultPollInterval is the interval between two status checks of a pending request.
const DefaultPollInterval = 1 * time.Second

// AwaitApproval polls the status of h every interval until the request is approved with a certificate,
// denied, or timeout elapses. Errors returned by Status are retried until the deadline.
// It returns the issued PEM certificate.
func AwaitApproval(ctx context.Context, c Client, h Handle, timeout, interval time.Duration) ([]byte, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := ulog.FromContext(ctx).WithValues("csr", h.Name)

	var cert []byte
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		status, err := c.Status(ctx, h)
		if err != nil {
			log.V(1).Info("Failed to get certificate request status, retrying", "error", err.Error())
			return false, nil
		}
		switch status.Phase {
		case PhaseApproved:
			if len(status.Certificate) == 0 {
				log.V(1).Info("Certificate request approved, waiting for certificate")
				return false, nil
			}
			cert = status.Certificate
			return true, nil
		case PhaseDenied:
			return false, &ApprovalDeniedError{Name: h.Name, Reason: status.Reason}
		case PhaseNotFound:
			log.V(1).Info("Certificate request not found, retrying")
			return false, nil
		default:
			log.V(1).Info("Certificate request pending approval")
			return false, nil
		}
	})

	switch {
	case err == nil:
		return cert, nil
	case ctx.Err() != nil:
		return nil, errors.Wrapf(ErrCancelled, "while waiting for approval of %s", h.Name)
	case wait.Interrupted(err):
		return nil, &ApprovalTimeoutError{Name: h.Name, Timeout: timeout}
	default:
		return nil, err
	}
}

// Retire deletes the request. Errors are logged and never returned.
func Retire(ctx context.Context, c Client, h Handle) {
	if err := c.Delete(ctx, h); err != nil {
		ulog.FromContext(ctx).Info("Failed to delete certificate request", "csr", h.Name, "error", err.Error())
	}
}
