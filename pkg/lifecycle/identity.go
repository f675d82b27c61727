// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package lifecycle

import (
	"strings"

	"github.com/pkg/errors"
)

// Identity is the subject an edge agent authenticates as.
type Identity struct {
	// Name is the certificate common name and the subject of privilege bindings.
	Name string
	// NamespaceKey isolates the persisted material and requests of this identity from others on the same host.
	NamespaceKey string
}

// NewIdentity returns the identity name. NamespaceKey is derived from key, or from name when key is empty.
func NewIdentity(name, key string) (Identity, error) {
	if strings.TrimSpace(name) == "" {
		return Identity{}, errors.New("identity name must not be empty")
	}
	if key == "" {
		key = name
	}
	namespaceKey := deriveNamespaceKey(key)
	if namespaceKey == "" {
		return Identity{}, errors.Errorf("no usable namespace key can be derived from %q", key)
	}
	return Identity{Name: name, NamespaceKey: namespaceKey}, nil
}

// deriveNamespaceKey lower-cases key and replaces every character outside [a-z0-9.-] with '-'.
// The result is usable both as a directory name and as a Kubernetes object name.
func deriveNamespaceKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

// DefaultCSRName returns the name of the certificate signing requests of this identity.
func (i Identity) DefaultCSRName() string {
	return i.NamespaceKey + "-csr"
}
