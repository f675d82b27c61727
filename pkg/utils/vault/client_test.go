// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_loginData(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("jwt-token\n"), 0o600))
	previous := ServiceAccountTokenPath
	ServiceAccountTokenPath = tokenFile
	t.Cleanup(func() { ServiceAccountTokenPath = previous })

	tests := []struct {
		name       string
		env        map[string]string
		wantMethod string
		wantData   map[string]interface{}
	}{
		{
			name:       "nothing configured",
			wantMethod: "",
		},
		{
			name:       "approle",
			env:        map[string]string{roleIDEnvVar: "role", secretEnvVar: "secret"},
			wantMethod: "approle",
			wantData:   map[string]interface{}{"role_id": "role", "secret_id": "secret"},
		},
		{
			name:       "approle needs both ids",
			env:        map[string]string{roleIDEnvVar: "role"},
			wantMethod: "",
		},
		{
			name:       "kubernetes",
			env:        map[string]string{k8sRoleEnvVar: "edge"},
			wantMethod: "kubernetes",
			wantData:   map[string]interface{}{"role": "edge", "jwt": "jwt-token"},
		},
		{
			name:       "kubernetes with custom mount",
			env:        map[string]string{k8sRoleEnvVar: "edge", k8sMountEnvVar: "k8s-edge"},
			wantMethod: "k8s-edge",
			wantData:   map[string]interface{}{"role": "edge", "jwt": "jwt-token"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{roleIDEnvVar, secretEnvVar, k8sRoleEnvVar, k8sMountEnvVar} {
				t.Setenv(key, tt.env[key])
			}
			method, data, err := loginData()
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestNewClient_RequiresAddress(t *testing.T) {
	t.Setenv(addrEnvVar, "")
	_, err := NewClient()
	require.Error(t, err)
}
