// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package certificates

import (
	cryptorand "crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// DefaultOrganization is the organization of every issued edge identity.
const DefaultOrganization = "nuvla"

var (
	oidExtensionKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidExtensionExtendedKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}

	extKeyUsageOIDs = map[x509.ExtKeyUsage]asn1.ObjectIdentifier{
		x509.ExtKeyUsageServerAuth: {1, 3, 6, 1, 5, 5, 7, 3, 1},
		x509.ExtKeyUsageClientAuth: {1, 3, 6, 1, 5, 5, 7, 3, 2},
	}
)

// EncodingError is returned when a certificate request cannot be encoded.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("unable to encode certificate request: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("unable to encode certificate request: %v", e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Subject is the distinguished name an identity requests.
type Subject struct {
	CommonName   string
	Organization string
}

// CertificateRequest is a signed PKCS#10 request derived from a KeyPair.
type CertificateRequest struct {
	Subject     Subject
	KeyPair     *KeyPair
	KeyUsage    x509.KeyUsage
	ExtKeyUsage []x509.ExtKeyUsage
	// Raw is the DER encoded request.
	Raw []byte
}

// PEM returns the request as a PEM "CERTIFICATE REQUEST" block.
func (r *CertificateRequest) PEM() []byte {
	return EncodePEMCSR(r.Raw)
}

// BuildCSR builds a request for subject signed with kp, asking for key and data encipherment
// and for both server and client authentication extended usages.
func BuildCSR(subject Subject, kp *KeyPair) (*CertificateRequest, error) {
	switch {
	case subject.CommonName == "":
		return nil, &EncodingError{Field: "subject.commonName", Err: fmt.Errorf("must not be empty")}
	case subject.Organization == "":
		return nil, &EncodingError{Field: "subject.organization", Err: fmt.Errorf("must not be empty")}
	case kp == nil || kp.PrivateKey == nil:
		return nil, &EncodingError{Field: "keyPair", Err: fmt.Errorf("must not be nil")}
	}

	keyUsage := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment
	extKeyUsage := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}

	kuExt, err := marshalKeyUsage(keyUsage)
	if err != nil {
		return nil, &EncodingError{Field: "keyUsage", Err: err}
	}
	ekuExt, err := marshalExtKeyUsage(extKeyUsage)
	if err != nil {
		return nil, &EncodingError{Field: "extKeyUsage", Err: err}
	}

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName:   subject.CommonName,
			Organization: []string{subject.Organization},
		},
		SignatureAlgorithm: x509.SHA256WithRSA,
		ExtraExtensions:    []pkix.Extension{kuExt, ekuExt},
	}
	raw, err := x509.CreateCertificateRequest(cryptorand.Reader, &template, kp.PrivateKey)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}

	return &CertificateRequest{
		Subject:     subject,
		KeyPair:     kp,
		KeyUsage:    keyUsage,
		ExtKeyUsage: extKeyUsage,
		Raw:         raw,
	}, nil
}

// marshalKeyUsage encodes ku as the RFC 5280 KeyUsage BIT STRING, bit 0 being digitalSignature.
func marshalKeyUsage(ku x509.KeyUsage) (pkix.Extension, error) {
	var bits [2]byte
	bitLength := 0
	for i := 0; i < 9; i++ {
		if ku&(1<<uint(i)) != 0 {
			bits[i/8] |= 0x80 >> uint(i%8)
			bitLength = i + 1
		}
	}
	value, err := asn1.Marshal(asn1.BitString{Bytes: bits[:(bitLength+7)/8], BitLength: bitLength})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidExtensionKeyUsage, Critical: true, Value: value}, nil
}

func marshalExtKeyUsage(usages []x509.ExtKeyUsage) (pkix.Extension, error) {
	oids := make([]asn1.ObjectIdentifier, 0, len(usages))
	for _, u := range usages {
		oid, ok := extKeyUsageOIDs[u]
		if !ok {
			return pkix.Extension{}, fmt.Errorf("unsupported extended key usage %d", u)
		}
		oids = append(oids, oid)
	}
	value, err := asn1.Marshal(oids)
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidExtensionExtendedKeyUsage, Value: value}, nil
}
