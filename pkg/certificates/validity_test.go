// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateMatchesPublicKey(t *testing.T) {
	kp := testKeyPair(t)
	ca := testSelfSignedCA(t)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	require.NoError(t, err)
	otherECKey, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name string
		pub  any
		priv crypto.Signer
		want bool
	}{
		{name: "matching rsa", pub: kp.Public(), priv: kp.PrivateKey, want: true},
		{name: "mismatching rsa", pub: ca.Cert.PublicKey, priv: kp.PrivateKey, want: false},
		{name: "matching ecdsa", pub: ecKey.Public(), priv: ecKey, want: true},
		{name: "mismatching ecdsa", pub: ecKey.Public(), priv: otherECKey, want: false},
		{name: "rsa public, ecdsa private", pub: kp.Public(), priv: ecKey, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrivateMatchesPublicKey(tt.pub, tt.priv))
		})
	}

	assert.False(t, PrivateMatchesPublicKey(kp.Public(), nil))
}

func TestCheckValidity(t *testing.T) {
	now := time.Now()
	cert := &x509.Certificate{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(time.Hour)}

	require.NoError(t, CheckValidity(cert, now))
	require.Error(t, CheckValidity(cert, now.Add(-2*time.Hour)))
	require.Error(t, CheckValidity(cert, now.Add(2*time.Hour)))
}
