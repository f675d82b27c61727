// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	"crypto/x509"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCSR(t *testing.T) {
	kp := testKeyPair(t)
	req, err := BuildCSR(Subject{CommonName: "nuvla", Organization: DefaultOrganization}, kp)
	require.NoError(t, err)

	parsed, err := ParsePEMCSR(req.PEM())
	require.NoError(t, err)
	assert.Equal(t, "nuvla", parsed.Subject.CommonName)
	assert.Equal(t, []string{"nuvla"}, parsed.Subject.Organization)
	assert.True(t, PrivateMatchesPublicKey(parsed.PublicKey, kp.PrivateKey))

	// requested extensions are copied by the CA when signing
	var hasKU, hasEKU bool
	for _, ext := range parsed.Extensions {
		switch {
		case ext.Id.Equal(oidExtensionKeyUsage):
			hasKU = true
			assert.True(t, ext.Critical)
		case ext.Id.Equal(oidExtensionExtendedKeyUsage):
			hasEKU = true
		}
	}
	assert.True(t, hasKU)
	assert.True(t, hasEKU)
	assert.Equal(t, x509.KeyUsageDigitalSignature|x509.KeyUsageKeyEncipherment|x509.KeyUsageDataEncipherment, req.KeyUsage)
	assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}, req.ExtKeyUsage)
}

func TestBuildCSR_KeyUsageEncoding(t *testing.T) {
	kp := testKeyPair(t)
	req, err := BuildCSR(Subject{CommonName: "nuvla", Organization: DefaultOrganization}, kp)
	require.NoError(t, err)

	parsed, err := ParsePEMCSR(req.PEM())
	require.NoError(t, err)

	// a certificate built from the requested extensions carries the same usages
	ca := testSelfSignedCA(t)
	tmpl := x509.Certificate{
		Subject:         parsed.Subject,
		PublicKey:       parsed.PublicKey,
		NotBefore:       ca.Cert.NotBefore,
		NotAfter:        ca.Cert.NotAfter,
		ExtraExtensions: parsed.Extensions,
	}
	der, err := ca.CreateCertificate(tmpl)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	assert.Equal(t, req.KeyUsage, cert.KeyUsage)
	assert.ElementsMatch(t, req.ExtKeyUsage, cert.ExtKeyUsage)
}

func TestBuildCSR_Errors(t *testing.T) {
	kp := testKeyPair(t)
	tests := []struct {
		name    string
		subject Subject
		kp      *KeyPair
		field   string
	}{
		{
			name:    "empty common name",
			subject: Subject{Organization: DefaultOrganization},
			kp:      kp,
			field:   "subject.commonName",
		},
		{
			name:    "empty organization",
			subject: Subject{CommonName: "nuvla"},
			kp:      kp,
			field:   "subject.organization",
		},
		{
			name:    "nil key pair",
			subject: Subject{CommonName: "nuvla", Organization: DefaultOrganization},
			field:   "keyPair",
		},
		{
			name:    "key pair without key",
			subject: Subject{CommonName: "nuvla", Organization: DefaultOrganization},
			kp:      &KeyPair{},
			field:   "keyPair",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCSR(tt.subject, tt.kp)
			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tt.field, encErr.Field)
		})
	}
}
