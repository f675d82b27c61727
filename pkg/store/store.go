// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	CAFileName   = "ca.crt"
	CertFileName = "tls.crt"
	KeyFileName  = "tls.key"
	// LivenessFileName is written last by the file store. A bundle without it does not exist.
	LivenessFileName = ".liveness"
	// LivenessKey holds the liveness marker in stores keeping the bundle as a single object.
	LivenessKey = "liveness"
)

// ErrNotFound is returned by Load when no complete bundle is stored.
var ErrNotFound = errors.New("no credentials stored")

// Bundle is the PEM material of an issued identity.
type Bundle struct {
	CACert     []byte
	Cert       []byte
	PrivateKey []byte
	// IssuedAt is the time the bundle was persisted, as recorded in the liveness marker.
	IssuedAt time.Time
}

// Complete returns true if the bundle holds a CA certificate, a certificate and a private key.
func (b Bundle) Complete() bool {
	return len(b.CACert) > 0 && len(b.Cert) > 0 && len(b.PrivateKey) > 0
}

// Store persists a single bundle.
type Store interface {
	// Load returns the stored bundle, or ErrNotFound.
	Load(ctx context.Context) (Bundle, error)
	// Save replaces the stored bundle. A reader observes either the previous bundle, no bundle, or the new one.
	Save(ctx context.Context, b Bundle) error
	// Delete removes the stored bundle. It is not an error if there is none.
	Delete(ctx context.Context) error
}

func encodeMarker(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.Unix(), 10))
}

// decodeMarker parses a marker. A corrupted marker yields the zero time, the bundle itself is still returned.
func decodeMarker(data []byte) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}

func issuedAt(b Bundle) time.Time {
	if b.IssuedAt.IsZero() {
		return time.Now()
	}
	return b.IssuedAt
}
