// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/pkg/errors"
)

var ErrEncryptedPrivateKey = errors.New("encrypted private key")

const (
	certificateType        = "CERTIFICATE"
	certificateRequestType = "CERTIFICATE REQUEST"
	ecPrivateKeyType       = "EC PRIVATE KEY"
	pkcs1PrivateKeyType    = "RSA PRIVATE KEY"
	pkcs8PrivateKeyType    = "PRIVATE KEY"
)

// ParsePEMCerts returns the certificates found in the given PEM data, other blocks are skipped.
// Unlike x509.CertPool.AppendCertsFromPEM the parsed certificates are returned so they can be compared.
func ParsePEMCerts(pemData []byte) ([]*x509.Certificate, error) {
	certs := []*x509.Certificate{}
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != certificateType || len(block.Headers) != 0 {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		certs = append(certs, cert)
	}
	return certs, nil
}

// EncodePEMCert encodes the given certificate blocks as a PEM certificate
func EncodePEMCert(certBlocks ...[]byte) []byte {
	var buf bytes.Buffer
	for _, block := range certBlocks {
		_, _ = buf.Write(pem.EncodeToMemory(&pem.Block{Type: certificateType, Bytes: block}))
	}
	return buf.Bytes()
}

// EncodePEMCSR encodes a DER certificate request as PEM.
func EncodePEMCSR(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: certificateRequestType, Bytes: der})
}

// ParsePEMCSR parses a PEM certificate request and checks its signature.
func ParsePEMCSR(pemData []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != certificateRequestType {
		return nil, errors.New("failed to parse PEM block containing certificate request")
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, errors.Wrap(err, "invalid certificate request signature")
	}
	return csr, nil
}

// EncodePEMPrivateKey encodes the given private key in the PEM format
func EncodePEMPrivateKey(privateKey crypto.Signer) ([]byte, error) {
	pemBlock, err := pemBlockForKey(privateKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(pemBlock), nil
}

func pemBlockForKey(privateKey interface{}) (*pem.Block, error) {
	switch k := privateKey.(type) {
	case *rsa.PrivateKey:
		return &pem.Block{Type: pkcs1PrivateKeyType, Bytes: x509.MarshalPKCS1PrivateKey(k)}, nil
	case *ecdsa.PrivateKey:
		b, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			return nil, err
		}
		return &pem.Block{Type: ecPrivateKeyType, Bytes: b}, nil
	default:
		// attempt PKCS#8 format
		b, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			return nil, err
		}
		return &pem.Block{Type: pkcs8PrivateKeyType, Bytes: b}, nil
	}
}

// ParsePEMPrivateKey parses the given private key in the PEM format
// ErrEncryptedPrivateKey is returned as an error if the private key is encrypted.
func ParsePEMPrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing private key")
	}

	switch {
	case x509.IsEncryptedPEMBlock(block): //nolint:staticcheck
		// Private key is encrypted, do not attempt to parse it
		return nil, ErrEncryptedPrivateKey
	case block.Type == pkcs8PrivateKeyType:
		return parsePKCS8PrivateKey(block.Bytes)
	case block.Type == pkcs1PrivateKeyType && len(block.Headers) == 0:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case block.Type == ecPrivateKeyType:
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported private key type %q", block.Type)
	}
}

func parsePKCS8PrivateKey(block []byte) (crypto.Signer, error) {
	key, err := x509.ParsePKCS8PrivateKey(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errors.Errorf("unsupported PKCS#8 private key type %T", key)
	}
	return signer, nil
}

// GetPrimaryCertificate returns the primary certificate (i.e. the actual subject, not a CA or intermediate) from a PEM certificate chain
func GetPrimaryCertificate(pemBytes []byte) (*x509.Certificate, error) {
	parsedCerts, err := ParsePEMCerts(pemBytes)
	if err != nil {
		return nil, err
	}
	// the primary certificate should always come first, see:
	// http://tools.ietf.org/html/rfc4346#section-7.4.2
	if len(parsedCerts) < 1 {
		return nil, errors.New("expected at least one certificate")
	}
	return parsedCerts[0], nil
}
