// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault is an in-memory KV version 1 backend.
type fakeVault struct {
	data map[string]map[string]interface{}
	err  error
}

func newFakeVault() *fakeVault {
	return &fakeVault{data: map[string]map[string]interface{}{}}
}

func (f *fakeVault) Read(path string) (*api.Secret, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, exists := f.data[path]
	if !exists {
		return nil, nil
	}
	return &api.Secret{Data: data}, nil
}

func (f *fakeVault) Write(path string, data map[string]interface{}) (*api.Secret, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.data[path] = data
	return nil, nil
}

func (f *fakeVault) Delete(path string) (*api.Secret, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.data, path)
	return nil, nil
}

func TestVaultStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	v := newFakeVault()
	s := NewVaultStore(v, "secret/nuvlaedge", "nuvla")
	assert.Equal(t, "secret/nuvlaedge/nuvla", s.Path())

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleBundle("a")))
	assert.Contains(t, v.data, "secret/nuvlaedge/nuvla")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle("a"), got)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVaultStore_Load(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr error
		wantAny bool
	}{
		{
			name:    "no marker",
			data:    map[string]interface{}{CAFileName: "ca", CertFileName: "cert", KeyFileName: "key"},
			wantErr: ErrNotFound,
		},
		{
			name:    "non string field",
			data:    map[string]interface{}{LivenessKey: "1", CAFileName: 42, CertFileName: "cert", KeyFileName: "key"},
			wantAny: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeVault()
			v.data["kv/nuvla"] = tt.data
			_, err := NewVaultStore(v, "kv", "nuvla").Load(context.Background())
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				require.Error(t, err)
				require.NotErrorIs(t, err, ErrNotFound)
			}
		})
	}
}

func TestVaultStore_Errors(t *testing.T) {
	boom := errors.New("boom")
	v := newFakeVault()
	v.err = boom
	s := NewVaultStore(v, "kv", "nuvla")

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.Save(context.Background(), sampleBundle("a")), boom)
	require.ErrorIs(t, s.Delete(context.Background()), boom)
	require.Error(t, s.Save(context.Background(), Bundle{}))
}
