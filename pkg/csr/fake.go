// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package csr

import (
	"context"
	"crypto/x509"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/elastic/edge-credentials/pkg/certificates"
)

// Decision returns the phase reported for the n-th status poll of a request, starting at 1.
type Decision func(n int) Phase

// ApproveAfter approves a request on its n-th poll.
func ApproveAfter(n int) Decision {
	return func(poll int) Phase {
		if poll >= n {
			return PhaseApproved
		}
		return PhasePending
	}
}

// AlwaysPending never decides.
func AlwaysPending() Decision {
	return func(int) Phase {
		return PhasePending
	}
}

// DenyImmediately denies a request on its first poll.
func DenyImmediately() Decision {
	return func(int) Phase {
		return PhaseDenied
	}
}

// Calls counts the calls made to a FakeClient.
type Calls struct {
	Submit int
	Status int
	Delete int
}

// FakeClient is an in-memory Client signing approved requests with a CA.
type FakeClient struct {
	ca       *certificates.CA
	decide   Decision
	validity time.Duration

	mu          sync.Mutex
	certificate []byte
	statusErr   error
	requests    map[string]*x509.CertificateRequest
	polls       map[string]int
	calls       Calls
}

// NewFakeClient returns a FakeClient deciding on requests with decide.
func NewFakeClient(ca *certificates.CA, decide Decision) *FakeClient {
	return &FakeClient{
		ca:       ca,
		decide:   decide,
		validity: time.Hour,
		requests: map[string]*x509.CertificateRequest{},
		polls:    map[string]int{},
	}
}

// WithCertificate makes approved requests return cert.
func (f *FakeClient) WithCertificate(cert []byte) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.certificate = cert
	return f
}

// WithStatusError makes Status return err.
func (f *FakeClient) WithStatusError(err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
	return f
}

// Calls returns the number of calls made so far.
func (f *FakeClient) Calls() Calls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Pending returns the names of the requests not deleted yet.
func (f *FakeClient) Pending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.requests))
	for name := range f.requests {
		names = append(names, name)
	}
	return names
}

var _ Client = &FakeClient{}

func (f *FakeClient) Submit(_ context.Context, name string, req *certificates.CertificateRequest) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Submit++

	parsed, err := certificates.ParsePEMCSR(req.PEM())
	if err != nil {
		return Handle{}, err
	}
	f.requests[name] = parsed
	f.polls[name] = 0
	return Handle{Name: name, SubmittedAt: time.Now()}, nil
}

func (f *FakeClient) Status(_ context.Context, h Handle) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Status++

	if f.statusErr != nil {
		return Status{}, f.statusErr
	}
	req, exists := f.requests[h.Name]
	if !exists {
		return Status{Phase: PhaseNotFound}, nil
	}
	f.polls[h.Name]++
	switch phase := f.decide(f.polls[h.Name]); phase {
	case PhaseApproved:
		if f.certificate != nil {
			return Status{Phase: PhaseApproved, Certificate: f.certificate}, nil
		}
		der, err := f.ca.SignRequest(req, f.validity)
		if err != nil {
			return Status{}, errors.Wrap(err, "while signing certificate request")
		}
		return Status{Phase: PhaseApproved, Certificate: certificates.EncodePEMCert(der)}, nil
	case PhaseDenied:
		return Status{Phase: PhaseDenied, Reason: "denied by test"}, nil
	default:
		return Status{Phase: phase}, nil
	}
}

func (f *FakeClient) Delete(_ context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Delete++
	delete(f.requests, h.Name)
	delete(f.polls, h.Name)
	return nil
}
