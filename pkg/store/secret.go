// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package store

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"

	"github.com/elastic/edge-credentials/pkg/utils/k8s"
)

const (
	secretNameSuffix = "-credentials"
	// IdentityLabelName is set on the Secret with the namespace key of the identity as value.
	IdentityLabelName = "nuvla.io/identity"
)

// SecretStore keeps a bundle in a single Secret named <namespaceKey>-credentials.
// Secret writes replace all keys at once, the marker is only a presence check.
type SecretStore struct {
	c            k8s.Client
	nsn          types.NamespacedName
	namespaceKey string
}

var _ Store = &SecretStore{}

// NewSecretStore returns a store for the identity namespaceKey in namespace.
func NewSecretStore(c k8s.Client, namespace, namespaceKey string) *SecretStore {
	return &SecretStore{
		c:            c,
		nsn:          types.NamespacedName{Namespace: namespace, Name: namespaceKey + secretNameSuffix},
		namespaceKey: namespaceKey,
	}
}

// SecretName returns the namespaced name of the Secret holding the bundle.
func (s *SecretStore) SecretName() types.NamespacedName {
	return s.nsn
}

func (s *SecretStore) Load(ctx context.Context) (Bundle, error) {
	var secret corev1.Secret
	if err := s.c.Get(ctx, s.nsn, &secret); err != nil {
		if apierrors.IsNotFound(err) {
			return Bundle{}, ErrNotFound
		}
		return Bundle{}, errors.Wrapf(err, "while getting secret %s", s.nsn)
	}
	marker := k8s.GetSecretEntry(secret, LivenessKey)
	if marker == nil {
		return Bundle{}, ErrNotFound
	}
	return Bundle{
		CACert:     k8s.GetSecretEntry(secret, CAFileName),
		Cert:       k8s.GetSecretEntry(secret, CertFileName),
		PrivateKey: k8s.GetSecretEntry(secret, KeyFileName),
		IssuedAt:   decodeMarker(marker),
	}, nil
}

func (s *SecretStore) Save(ctx context.Context, b Bundle) error {
	if !b.Complete() {
		return errors.New("refusing to save an incomplete bundle")
	}
	data := map[string][]byte{
		CAFileName:   b.CACert,
		CertFileName: b.Cert,
		KeyFileName:  b.PrivateKey,
		LivenessKey:  encodeMarker(issuedAt(b)),
	}

	var existing corev1.Secret
	err := s.c.Get(ctx, s.nsn, &existing)
	switch {
	case apierrors.IsNotFound(err):
		expected := corev1.Secret{
			ObjectMeta: k8s.ToObjectMeta(s.nsn),
			Type:       corev1.SecretTypeOpaque,
			Data:       data,
		}
		expected.Labels = map[string]string{IdentityLabelName: s.namespaceKey}
		if err := s.c.Create(ctx, &expected); err != nil {
			return errors.Wrapf(err, "while creating secret %s", s.nsn)
		}
		return nil
	case err != nil:
		return errors.Wrapf(err, "while getting secret %s", s.nsn)
	}

	existing.Data = data
	if existing.Labels == nil {
		existing.Labels = map[string]string{}
	}
	existing.Labels[IdentityLabelName] = s.namespaceKey
	if err := s.c.Update(ctx, &existing); err != nil {
		return errors.Wrapf(err, "while updating secret %s", s.nsn)
	}
	return nil
}

func (s *SecretStore) Delete(ctx context.Context) error {
	secret := corev1.Secret{ObjectMeta: k8s.ToObjectMeta(s.nsn)}
	if err := s.c.Delete(ctx, &secret); err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "while deleting secret %s", s.nsn)
	}
	return nil
}
