// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package cryptutil

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/edge-credentials/pkg/utils/test"
)

func TestVerifyCertificateExceptServerName(t *testing.T) {
	pki := test.NewPKI(t)
	otherPKI := test.NewPKI(t)
	server := pki.IssueServer(t, "api.example.com")
	clientCert, _ := pki.IssueClient(t, "nuvla")
	clientDER := test.FirstDER(t, clientCert)

	tests := []struct {
		name     string
		rawCerts [][]byte
		roots    *x509.CertPool
		wantErr  bool
	}{
		{name: "trusted, server name ignored", rawCerts: server.Certificate, roots: pki.CertPool()},
		{name: "untrusted", rawCerts: server.Certificate, roots: otherPKI.CertPool(), wantErr: true},
		{name: "no certificate", rawCerts: nil, roots: pki.CertPool(), wantErr: true},
		{name: "garbage", rawCerts: [][]byte{[]byte("garbage")}, roots: pki.CertPool(), wantErr: true},
		{name: "client certificate presented by a server", rawCerts: [][]byte{clientDER}, roots: pki.CertPool(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &tls.Config{RootCAs: tt.roots, ServerName: "other.example.com"} //nolint:gosec
			_, _, err := VerifyCertificateExceptServerName(tt.rawCerts, conf)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			require.NoError(t, PeerVerifier(conf)(tt.rawCerts, nil))
		})
	}
}

func TestPeerVerifier_RejectsVerifiedChains(t *testing.T) {
	pki := test.NewPKI(t)
	server := pki.IssueServer(t)
	conf := &tls.Config{RootCAs: pki.CertPool()} //nolint:gosec
	require.Error(t, PeerVerifier(conf)(server.Certificate, [][]*x509.Certificate{{}}))
}

func TestSameCertificates(t *testing.T) {
	a := test.NewPKI(t).CA.Cert
	b := test.NewPKI(t).CA.Cert

	assert.True(t, SameCertificates([]*x509.Certificate{a, b}, []*x509.Certificate{a, b}))
	assert.False(t, SameCertificates([]*x509.Certificate{a, b}, []*x509.Certificate{b, a}))
	assert.False(t, SameCertificates([]*x509.Certificate{a}, []*x509.Certificate{a, b}))
	assert.False(t, SameCertificates([]*x509.Certificate{a}, []*x509.Certificate{b}))
}
