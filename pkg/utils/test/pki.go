// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package test

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/elastic/edge-credentials/pkg/certificates"
)

// PKI is a throwaway certificate authority for tests.
type PKI struct {
	CA *certificates.CA
}

// NewPKI creates a self-signed CA valid for one day.
func NewPKI(t *testing.T) *PKI {
	t.Helper()
	expireIn := 24 * time.Hour
	ca, err := certificates.NewSelfSignedCA(certificates.CABuilderOptions{
		Subject:  pkix.Name{CommonName: "test-ca", Organization: []string{"test"}},
		ExpireIn: &expireIn,
	})
	require.NoError(t, err)
	return &PKI{CA: ca}
}

// CACertPEM returns the CA certificate in the PEM format.
func (p *PKI) CACertPEM() []byte {
	return p.CA.CertPEM()
}

// CertPool returns a pool holding the CA certificate.
func (p *PKI) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(p.CA.Cert)
	return pool
}

// IssueClient returns a PEM client certificate and private key for commonName.
func (p *PKI) IssueClient(t *testing.T, commonName string) (certPEM, keyPEM []byte) {
	t.Helper()
	return p.IssueClientWithValidity(t, commonName, time.Hour)
}

// IssueClientWithValidity is IssueClient with a custom validity, negative values give an expired certificate.
func (p *PKI) IssueClientWithValidity(t *testing.T, commonName string, validity time.Duration) (certPEM, keyPEM []byte) {
	t.Helper()
	kp, err := certificates.GenerateKeyPair(certificates.MinKeyBits)
	require.NoError(t, err)

	notBefore, notAfter := time.Now().Add(-time.Minute), time.Now().Add(validity)
	if validity < 0 {
		notBefore, notAfter = time.Now().Add(2*validity), time.Now().Add(validity)
	}
	der, err := p.CA.CreateCertificate(x509.Certificate{
		Subject:     pkix.Name{CommonName: commonName, Organization: []string{certificates.DefaultOrganization}},
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		PublicKey:   kp.Public(),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	require.NoError(t, err)

	keyPEM, err = kp.PEM()
	require.NoError(t, err)
	return certificates.EncodePEMCert(der), keyPEM
}

// IssueServer returns a server certificate for the loopback address and the given DNS names.
func (p *PKI) IssueServer(t *testing.T, dnsNames ...string) tls.Certificate {
	t.Helper()
	kp, err := certificates.GenerateKeyPair(certificates.MinKeyBits)
	require.NoError(t, err)

	der, err := p.CA.CreateCertificate(x509.Certificate{
		Subject:     pkix.Name{CommonName: "test-server"},
		DNSNames:    dnsNames,
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().Add(time.Hour),
		PublicKey:   kp.Public(),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: kp.PrivateKey}
}

// NewMTLSServer starts a TLS server presenting a certificate issued by the PKI and requiring
// client certificates issued by the same PKI. It is closed when the test ends.
func (p *PKI) NewMTLSServer(t *testing.T, handler http.Handler, serverDNSNames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{p.IssueServer(t, serverDNSNames...)},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    p.CertPool(),
		MinVersion:   tls.VersionTLS12,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

// FirstDER returns the DER bytes of the first certificate in pemData.
func FirstDER(t *testing.T, pemData []byte) []byte {
	t.Helper()
	cert, err := certificates.GetPrimaryCertificate(pemData)
	require.NoError(t, err)
	return cert.Raw
}
