// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package validation

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/elastic/edge-credentials/pkg/certificates"
	"github.com/elastic/edge-credentials/pkg/store"
	"github.com/elastic/edge-credentials/pkg/tracing"
)

// Result is the outcome of a bundle check. Reason explains an invalid result.
type Result struct {
	Valid  bool
	Reason string
}

func valid() Result {
	return Result{Valid: true}
}

func invalid(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Prober checks that a bundle is accepted by the service it identifies against.
type Prober interface {
	Probe(ctx context.Context, b store.Bundle) error
}

// ProberFunc adapts a function to a Prober.
type ProberFunc func(ctx context.Context, b store.Bundle) error

func (f ProberFunc) Probe(ctx context.Context, b store.Bundle) error {
	return f(ctx, b)
}

// Validator runs structural, trust and operational checks on a bundle, stopping at the first failure.
type Validator struct {
	prober Prober
	now    func() time.Time
}

// NewValidator returns a Validator using prober for the operational check. A nil prober skips it.
func NewValidator(prober Prober) *Validator {
	return &Validator{prober: prober, now: time.Now}
}

// Check validates b.
func (v *Validator) Check(ctx context.Context, b store.Bundle) Result {
	leaf, chain, res := v.checkStructure(b)
	if !res.Valid {
		return res
	}
	if res := v.checkTrust(b, leaf, chain); !res.Valid {
		return res
	}
	if v.prober == nil {
		return valid()
	}

	ctx, end := tracing.StartSpan(ctx, "probe")
	defer end()
	if err := v.prober.Probe(ctx, b); err != nil {
		return invalid("operational check failed: %v", err)
	}
	return valid()
}

// checkStructure parses the material and checks that the certificate carries the public half of the key.
func (v *Validator) checkStructure(b store.Bundle) (*x509.Certificate, []*x509.Certificate, Result) {
	if !b.Complete() {
		return nil, nil, invalid("incomplete bundle")
	}
	key, err := certificates.ParsePEMPrivateKey(b.PrivateKey)
	if err != nil {
		return nil, nil, invalid("unable to parse private key: %v", err)
	}
	certs, err := certificates.ParsePEMCerts(b.Cert)
	if err != nil {
		return nil, nil, invalid("unable to parse certificate: %v", err)
	}
	if len(certs) == 0 {
		return nil, nil, invalid("no certificate found")
	}
	if !certificates.PrivateMatchesPublicKey(certs[0].PublicKey, key) {
		return nil, nil, invalid("certificate does not match private key")
	}
	return certs[0], certs[1:], valid()
}

// checkTrust verifies that leaf is currently valid and chains up to the bundle CA for client authentication.
func (v *Validator) checkTrust(b store.Bundle, leaf *x509.Certificate, chain []*x509.Certificate) Result {
	cas, err := certificates.ParsePEMCerts(b.CACert)
	if err != nil {
		return invalid("unable to parse CA certificate: %v", err)
	}
	if len(cas) == 0 {
		return invalid("no CA certificate found")
	}

	now := v.now()
	if err := certificates.CheckValidity(leaf, now); err != nil {
		return invalid("%v", err)
	}

	roots := x509.NewCertPool()
	for _, ca := range cas {
		roots.AddCert(ca)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range chain {
		intermediates.AddCert(cert)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}); err != nil {
		return invalid("certificate not trusted by CA: %v", err)
	}
	return valid()
}
