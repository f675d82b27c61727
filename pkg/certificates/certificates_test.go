// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	"crypto/x509/pkix"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *KeyPair
	testCAOnce  sync.Once
	testCA      *CA
)

// testKeyPair returns a 2048-bit key pair shared by the tests of this package.
func testKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	testKeyOnce.Do(func() {
		kp, err := GenerateKeyPair(MinKeyBits)
		require.NoError(t, err)
		testKey = kp
	})
	return testKey
}

func testSelfSignedCA(t *testing.T) *CA {
	t.Helper()
	testCAOnce.Do(func() {
		ca, err := NewSelfSignedCA(CABuilderOptions{Subject: pkix.Name{CommonName: "test-ca"}})
		require.NoError(t, err)
		testCA = ca
	})
	return testCA
}
