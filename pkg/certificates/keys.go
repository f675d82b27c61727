// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	"crypto"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"fmt"
)

const (
	// DefaultKeyBits is the RSA key size of issued identities.
	DefaultKeyBits = 4096
	// MinKeyBits is the smallest RSA key size accepted by GenerateKeyPair.
	MinKeyBits = 2048
)

// KeyGenError is returned when a private key cannot be generated.
type KeyGenError struct {
	Bits int
	Err  error
}

func (e *KeyGenError) Error() string {
	return fmt.Sprintf("unable to generate %d-bit RSA private key: %v", e.Bits, e.Err)
}

func (e *KeyGenError) Unwrap() error {
	return e.Err
}

// KeyPair holds a private key owned by a single issuance attempt until it is persisted.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
}

// Public returns the public half of the key pair.
func (kp *KeyPair) Public() crypto.PublicKey {
	return kp.PrivateKey.Public()
}

// PEM encodes the private key as a PKCS#1 PEM block.
func (kp *KeyPair) PEM() ([]byte, error) {
	return EncodePEMPrivateKey(kp.PrivateKey)
}

// GenerateKeyPair generates an RSA key pair of the given size.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	if bits < MinKeyBits {
		return nil, &KeyGenError{Bits: bits, Err: fmt.Errorf("key size must be at least %d bits", MinKeyBits)}
	}
	key, err := rsa.GenerateKey(cryptorand.Reader, bits)
	if err != nil {
		return nil, &KeyGenError{Bits: bits, Err: err}
	}
	return &KeyPair{PrivateKey: key}, nil
}
