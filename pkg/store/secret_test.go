// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/elastic/edge-credentials/pkg/utils/k8s"
)

func TestSecretStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	c := k8s.NewFakeClient()
	s := NewSecretStore(c, "nuvla-system", "nuvla")
	assert.Equal(t, "nuvla-credentials", s.SecretName().Name)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleBundle("a")))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle("a"), got)

	// replace
	require.NoError(t, s.Save(ctx, sampleBundle("b")))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle("b"), got)

	var secret corev1.Secret
	require.NoError(t, c.Get(ctx, s.SecretName(), &secret))
	assert.Equal(t, "nuvla", secret.Labels[IdentityLabelName])
	assert.Len(t, secret.Data, 4)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx))
}

func TestSecretStore_WithoutMarker(t *testing.T) {
	existing := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: "nuvla-system", Name: "nuvla-credentials"},
		Data: map[string][]byte{
			CAFileName:   []byte("ca"),
			CertFileName: []byte("cert"),
			KeyFileName:  []byte("key"),
		},
	}
	s := NewSecretStore(k8s.NewFakeClient(existing), "nuvla-system", "nuvla")
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	// saving over a secret without labels
	require.NoError(t, s.Save(context.Background(), sampleBundle("a")))
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleBundle("a"), got)
}

func TestSecretStore_Errors(t *testing.T) {
	boom := errors.New("boom")
	s := NewSecretStore(k8s.NewFailingClient(boom), "nuvla-system", "nuvla")

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Save(context.Background(), sampleBundle("a")), boom)
	require.ErrorIs(t, s.Delete(context.Background()), boom)
}
