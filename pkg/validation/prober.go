// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package validation

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.elastic.co/apm/module/apmhttp/v2"

	"github.com/elastic/edge-credentials/pkg/store"
	"github.com/elastic/edge-credentials/pkg/tracing"
	"github.com/elastic/edge-credentials/pkg/utils/cryptutil"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
)

const (
	// DefaultEndpoint is the in-cluster API server address.
	DefaultEndpoint     = "https://kubernetes.default.svc"
	DefaultProbeTimeout = 10 * time.Second

	maxDrainBytes = 4096
)

// HTTPSProber sends a GET request to Endpoint authenticated with the bundle certificate, trusting the bundle CA.
// Any HTTP response except 401 Unauthorized shows that the certificate was accepted.
type HTTPSProber struct {
	Endpoint string
	Timeout  time.Duration
	// SkipServerName verifies the server chain without matching its certificate against the endpoint host.
	SkipServerName bool
}

var _ Prober = &HTTPSProber{}

func (p *HTTPSProber) Probe(ctx context.Context, b store.Bundle) error {
	client, err := p.client(b)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint, nil)
	if err != nil {
		return errors.Wrapf(err, "while creating request to %s", p.Endpoint)
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "while probing %s", p.Endpoint)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	ulog.FromContext(ctx).V(1).Info("Probe response", "endpoint", p.Endpoint, "status_code", resp.StatusCode)
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.Errorf("certificate rejected by %s: %s", p.Endpoint, resp.Status)
	}
	return nil
}

func (p *HTTPSProber) client(b store.Bundle) (*http.Client, error) {
	cert, err := tls.X509KeyPair(b.Cert, b.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "while loading client certificate")
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(b.CACert) {
		return nil, errors.New("no CA certificate found in bundle")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      roots,
		MinVersion:   tls.VersionTLS12,
	}
	if p.SkipServerName {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec
		tlsConfig.VerifyPeerCertificate = cryptutil.PeerVerifier(tlsConfig)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return apmhttp.WrapClient(
		&http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:   tlsConfig,
				DisableKeepAlives: true,
			},
		},
		apmhttp.WithClientRequestName(tracing.RequestName),
	), nil
}
