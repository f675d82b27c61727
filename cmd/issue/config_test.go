// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package issue

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/edge-credentials/pkg/lifecycle"
	"github.com/elastic/edge-credentials/pkg/rbac"
	"github.com/elastic/edge-credentials/pkg/store"
	"github.com/elastic/edge-credentials/pkg/utils/k8s"
)

func parse(t *testing.T, args map[string]string) (Options, error) {
	t.Helper()
	v := viper.New()
	cmd := &cobra.Command{}
	require.NoError(t, BindFlags(cmd, v))
	for name, value := range args {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
	return NewOptionsFromFlags(v)
}

func TestNewOptionsFromFlags_Defaults(t *testing.T) {
	opts, err := parse(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "nuvla", opts.Lifecycle.Identity.Name)
	assert.Equal(t, "nuvla", opts.Lifecycle.Identity.NamespaceKey)
	assert.Equal(t, lifecycle.DefaultApprovalTimeout, opts.Lifecycle.ApprovalTimeout)
	assert.Equal(t, time.Second, opts.Lifecycle.PollInterval)
	assert.Equal(t, lifecycle.DefaultTrustAnchorPath, opts.Lifecycle.TrustAnchorPath)
	assert.Equal(t, FileStorage, opts.Storage)
	assert.Equal(t, DefaultStoragePath, opts.StoragePath)
	assert.True(t, opts.Lock)
	assert.Equal(t, 0, opts.MetricsPort)
	assert.Empty(t, opts.BindClusterRole)
}

func TestNewOptionsFromFlags_Flags(t *testing.T) {
	opts, err := parse(t, map[string]string{
		IdentityFlag:        "Edge Agent",
		ApprovalTimeoutFlag: "30s",
		PollIntervalFlag:    "2s",
		StorageFlag:         "secret",
		SecretNamespaceFlag: "nuvlaedge",
		CertExpirationFlag:  "24h",
		BindClusterRoleFlag: "cluster-admin",
		LockFlag:            "false",
	})
	require.NoError(t, err)

	assert.Equal(t, "Edge Agent", opts.Lifecycle.Identity.Name)
	assert.Equal(t, "edge-agent", opts.Lifecycle.Identity.NamespaceKey)
	assert.Equal(t, 30*time.Second, opts.Lifecycle.ApprovalTimeout)
	assert.Equal(t, 2*time.Second, opts.Lifecycle.PollInterval)
	assert.Equal(t, SecretStorage, opts.Storage)
	assert.Equal(t, "nuvlaedge", opts.SecretNamespace)
	assert.Equal(t, 24*time.Hour, opts.CertExpiration)
	assert.Equal(t, "cluster-admin", opts.BindClusterRole)
	assert.False(t, opts.Lock)
}

func TestNewOptionsFromFlags_Env(t *testing.T) {
	t.Setenv("NUVLAEDGE_IDENTITY", "agent")
	t.Setenv("NUVLAEDGE_APPROVAL_TIMEOUT", "45s")
	t.Setenv("NUVLAEDGE_STORAGE_PATH", "/tmp/creds")

	opts, err := parse(t, nil)
	require.NoError(t, err)
	assert.Equal(t, "agent", opts.Lifecycle.Identity.Name)
	assert.Equal(t, 45*time.Second, opts.Lifecycle.ApprovalTimeout)
	assert.Equal(t, "/tmp/creds", opts.StoragePath)
}

func TestNewOptionsFromFlags_Seconds(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("NUVLAEDGE_APPROVAL_TIMEOUT", "600")
		t.Setenv("NUVLAEDGE_POLL_INTERVAL", "5")
		t.Setenv("NUVLAEDGE_CERT_EXPIRATION", "86400")

		opts, err := parse(t, nil)
		require.NoError(t, err)
		assert.Equal(t, 600*time.Second, opts.Lifecycle.ApprovalTimeout)
		assert.Equal(t, 5*time.Second, opts.Lifecycle.PollInterval)
		assert.Equal(t, 24*time.Hour, opts.CertExpiration)
	})
	t.Run("flags", func(t *testing.T) {
		opts, err := parse(t, map[string]string{ApprovalTimeoutFlag: "120", ProbeTimeoutFlag: "3"})
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, opts.Lifecycle.ApprovalTimeout)
		assert.Equal(t, 3*time.Second, opts.ProbeTimeout)
	})
	t.Run("garbage", func(t *testing.T) {
		t.Setenv("NUVLAEDGE_APPROVAL_TIMEOUT", "ten minutes")
		_, err := parse(t, nil)
		require.Error(t, err)
	})
}

func TestNewOptionsFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args map[string]string
	}{
		{name: "empty identity", args: map[string]string{IdentityFlag: ""}},
		{name: "unknown storage", args: map[string]string{StorageFlag: "s3"}},
		{name: "secret store without namespace", args: map[string]string{StorageFlag: "secret"}},
		{name: "file store without path", args: map[string]string{StoragePathFlag: ""}},
		{name: "vault store without path", args: map[string]string{StorageFlag: "vault", VaultPathFlag: ""}},
		{name: "zero approval timeout", args: map[string]string{ApprovalTimeoutFlag: "0s"}},
		{name: "negative expiration", args: map[string]string{CertExpirationFlag: "-1h"}},
		{name: "expiration below the API server minimum", args: map[string]string{CertExpirationFlag: "5m"}},
		{name: "expiration overflowing expirationSeconds", args: map[string]string{CertExpirationFlag: "2147483648"}},
		{name: "negative metrics port", args: map[string]string{MetricsPortFlag: "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args)
			require.Error(t, err)
		})
	}
}

func Test_newParams(t *testing.T) {
	c := k8s.NewFakeClient()

	t.Run("file store with lock", func(t *testing.T) {
		opts, err := parse(t, map[string]string{StoragePathFlag: t.TempDir()})
		require.NoError(t, err)
		params, err := newParams(c, opts)
		require.NoError(t, err)
		assert.IsType(t, &store.FileStore{}, params.Store)
		assert.NotNil(t, params.Locker)
		assert.IsType(t, lifecycle.NoopBinder{}, params.Binder)
		_, err = lifecycle.NewManager(params)
		require.NoError(t, err)
	})
	t.Run("file store without lock", func(t *testing.T) {
		opts, err := parse(t, map[string]string{StoragePathFlag: t.TempDir(), LockFlag: "false"})
		require.NoError(t, err)
		params, err := newParams(c, opts)
		require.NoError(t, err)
		assert.Nil(t, params.Locker)
	})
	t.Run("secret store with binding", func(t *testing.T) {
		opts, err := parse(t, map[string]string{
			StorageFlag:         "secret",
			SecretNamespaceFlag: "nuvlaedge",
			BindClusterRoleFlag: "view",
		})
		require.NoError(t, err)
		params, err := newParams(c, opts)
		require.NoError(t, err)
		assert.IsType(t, &store.SecretStore{}, params.Store)
		assert.Nil(t, params.Locker)
		assert.IsType(t, &rbac.ClusterRoleBinder{}, params.Binder)
	})
}
