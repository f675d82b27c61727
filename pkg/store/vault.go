// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package store

import (
	"context"
	"fmt"
	"path"

	"github.com/pkg/errors"

	"github.com/elastic/edge-credentials/pkg/utils/vault"
)

// VaultStore keeps a bundle as a single KV version 1 secret at <mountPath>/<namespaceKey>.
type VaultStore struct {
	c    vault.Client
	path string
}

var _ Store = &VaultStore{}

// NewVaultStore returns a store for the identity namespaceKey under mountPath.
func NewVaultStore(c vault.Client, mountPath, namespaceKey string) *VaultStore {
	return &VaultStore{c: c, path: path.Join(mountPath, namespaceKey)}
}

// Path returns the secret path holding the bundle.
func (s *VaultStore) Path() string {
	return s.path
}

func (s *VaultStore) Load(_ context.Context) (Bundle, error) {
	secret, err := s.c.Read(s.path)
	if err != nil {
		return Bundle{}, errors.Wrapf(err, "while reading %s", s.path)
	}
	if secret == nil || secret.Data == nil {
		return Bundle{}, ErrNotFound
	}
	marker, ok := secret.Data[LivenessKey]
	if !ok {
		return Bundle{}, ErrNotFound
	}

	fields := make(map[string][]byte, len(materialFiles))
	for _, name := range materialFiles {
		value, err := stringField(secret.Data, name)
		if err != nil {
			return Bundle{}, errors.Wrapf(err, "at %s", s.path)
		}
		fields[name] = value
	}
	markerValue, _ := marker.(string)

	return Bundle{
		CACert:     fields[CAFileName],
		Cert:       fields[CertFileName],
		PrivateKey: fields[KeyFileName],
		IssuedAt:   decodeMarker([]byte(markerValue)),
	}, nil
}

func stringField(data map[string]interface{}, name string) ([]byte, error) {
	value, ok := data[name]
	if !ok {
		return nil, nil
	}
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("field %s is not a string", name)
	}
	return []byte(str), nil
}

func (s *VaultStore) Save(_ context.Context, b Bundle) error {
	if !b.Complete() {
		return errors.New("refusing to save an incomplete bundle")
	}
	data := map[string]interface{}{
		CAFileName:   string(b.CACert),
		CertFileName: string(b.Cert),
		KeyFileName:  string(b.PrivateKey),
		LivenessKey:  string(encodeMarker(issuedAt(b))),
	}
	if _, err := s.c.Write(s.path, data); err != nil {
		return errors.Wrapf(err, "while writing %s", s.path)
	}
	return nil
}

func (s *VaultStore) Delete(_ context.Context) error {
	if _, err := s.c.Delete(s.path); err != nil {
		return errors.Wrapf(err, "while deleting %s", s.path)
	}
	return nil
}
