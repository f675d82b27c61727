// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package cryptutil

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"time"
)

// VerifyCertificateExceptServerName verifies the chain presented by a server against the RootCAs of c,
// the way crypto/tls does during a client handshake, without matching the certificate against c.ServerName.
// Control-plane endpoints are often reached through an IP or alias absent from the serving certificate SANs.
func VerifyCertificateExceptServerName(rawCerts [][]byte, c *tls.Config) ([]*x509.Certificate, [][]*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, nil, errors.New("tls: server presented no certificate")
	}
	certs := make([]*x509.Certificate, len(rawCerts))
	for i, asn1Data := range rawCerts {
		cert, err := x509.ParseCertificate(asn1Data)
		if err != nil {
			return nil, nil, errors.New("tls: failed to parse certificate from server: " + err.Error())
		}
		certs[i] = cert
	}

	now := time.Now()
	if c.Time != nil {
		now = c.Time()
	}

	// DNSName omitted in VerifyOptions in order to skip ServerName verification
	opts := x509.VerifyOptions{
		Roots:         c.RootCAs,
		CurrentTime:   now,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, cert := range certs[1:] {
		opts.Intermediates.AddCert(cert)
	}

	chains, err := certs[0].Verify(opts)
	return certs, chains, err
}

// PeerVerifier returns a tls.Config.VerifyPeerCertificate callback running VerifyCertificateExceptServerName.
// It must be used together with InsecureSkipVerify, Go requires either a ServerName or InsecureSkipVerify.
func PeerVerifier(c *tls.Config) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
		if verifiedChains != nil {
			return errors.New("tls: non-nil verifiedChains argument breaks crypto/tls.Config.VerifyPeerCertificate contract")
		}
		_, _, err := VerifyCertificateExceptServerName(rawCerts, c)
		return err
	}
}

// SameCertificates returns true if a and b hold the same certificates in the same order.
func SameCertificates(a, b []*x509.Certificate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i].Raw, b[i].Raw) {
			return false
		}
	}
	return true
}
