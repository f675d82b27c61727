// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	"crypto"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// DefaultCertValidity is the validity of certificates issued by CA when none is given.
const DefaultCertValidity = 365 * 24 * time.Hour

var (
	// SerialNumberLimit is the maximum number used as a certificate serial number
	SerialNumberLimit = new(big.Int).Lsh(big.NewInt(1), 128)
)

// CA is a simple certificate authority, standing in for the cluster signer in tests and local setups.
type CA struct {
	// PrivateKey is the CA private key
	PrivateKey crypto.Signer
	// Cert is the certificate used to issue new certificates
	Cert *x509.Certificate
}

// CABuilderOptions are options to build a self-signed CA
type CABuilderOptions struct {
	// Subject of the CA to build.
	Subject pkix.Name
	// PrivateKey to be used for signing certificates (auto-generated if not provided).
	PrivateKey *rsa.PrivateKey
	// ExpireIn defines in how much time will the CA expire (defaults to DefaultCertValidity if not provided).
	ExpireIn *time.Duration
}

// NewSelfSignedCA creates a self-signed CA according to the given options
func NewSelfSignedCA(options CABuilderOptions) (*CA, error) {
	serial, err := cryptorand.Int(cryptorand.Reader, SerialNumberLimit)
	if err != nil {
		return nil, err
	}

	privateKey := options.PrivateKey
	if privateKey == nil {
		privateKey, err = rsa.GenerateKey(cryptorand.Reader, MinKeyBits)
		if err != nil {
			return nil, errors.Wrap(err, "unable to generate the private key")
		}
	}

	notAfter := time.Now().Add(DefaultCertValidity)
	if options.ExpireIn != nil {
		notAfter = time.Now().Add(*options.ExpireIn)
	}

	certificateTemplate := x509.Certificate{
		SerialNumber:          serial,
		Subject:               options.Subject,
		NotBefore:             time.Now().Add(-10 * time.Minute),
		NotAfter:              notAfter,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	certData, err := x509.CreateCertificate(cryptorand.Reader, &certificateTemplate, &certificateTemplate, privateKey.Public(), privateKey)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(certData)
	if err != nil {
		return nil, err
	}

	return &CA{
		PrivateKey: privateKey,
		Cert:       cert,
	}, nil
}

// CertPEM returns the CA certificate in the PEM format.
func (c *CA) CertPEM() []byte {
	return EncodePEMCert(c.Cert.Raw)
}

// CreateCertificate signs template and returns the DER certificate. Serial number and issuer are set by the CA.
func (c *CA) CreateCertificate(template x509.Certificate) ([]byte, error) {
	serial, err := cryptorand.Int(cryptorand.Reader, SerialNumberLimit)
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate serial number for new certificate")
	}
	template.SerialNumber = serial
	template.Issuer = c.Cert.Subject

	return x509.CreateCertificate(cryptorand.Reader, &template, c.Cert, template.PublicKey, c.PrivateKey)
}

// SignRequest issues a client certificate for the given request, the way the kube-apiserver-client signer does:
// the subject is copied from the request, usages are fixed by the CA.
func (c *CA) SignRequest(csr *x509.CertificateRequest, validity time.Duration) ([]byte, error) {
	if err := csr.CheckSignature(); err != nil {
		return nil, errors.Wrap(err, "invalid certificate request signature")
	}
	if validity == 0 {
		validity = DefaultCertValidity
	}
	return c.CreateCertificate(x509.Certificate{
		Subject:               csr.Subject,
		NotBefore:             time.Now().Add(-1 * time.Minute),
		NotAfter:              time.Now().Add(validity),
		PublicKeyAlgorithm:    csr.PublicKeyAlgorithm,
		PublicKey:             csr.PublicKey,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	})
}
