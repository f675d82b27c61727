// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
)

const (
	addrEnvVar     = "VAULT_ADDR"
	tokenEnvVar    = "VAULT_TOKEN"
	roleIDEnvVar   = "VAULT_ROLE_ID"
	secretEnvVar   = "VAULT_SECRET_ID"
	k8sRoleEnvVar  = "VAULT_K8S_ROLE"
	k8sMountEnvVar = "VAULT_K8S_MOUNT"

	defaultK8sMount = "kubernetes"
)

// ServiceAccountTokenPath is the projected service account token used by the kubernetes auth method.
var ServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token" //nolint:gosec

// Client is the subset of the Vault logical API used to store credentials.
type Client interface {
	Read(path string) (*api.Secret, error)
	Write(path string, data map[string]interface{}) (*api.Secret, error)
	Delete(path string) (*api.Secret, error)
}

// NewClient returns a logical client authenticated from the environment.
func NewClient() (Client, error) {
	if os.Getenv(addrEnvVar) == "" {
		return nil, fmt.Errorf("%s must be set", addrEnvVar)
	}

	client, err := api.NewClient(api.DefaultConfig())
	if err != nil {
		return nil, errors.Wrap(err, "while creating vault client")
	}

	if err := auth(client); err != nil {
		return nil, err
	}

	return client.Logical(), nil
}

// auth fetches the token using approle (with role id and secret id) or kubernetes (with the service account token)
// if not already set through the environment or cached on disk.
func auth(c *api.Client) error {
	token := c.Token()

	// return if token is already set
	if token != "" {
		return nil
	}

	method, data, err := loginData()
	if err != nil {
		return err
	}

	if method == "" {
		token, err = readCachedToken()
		if err != nil {
			return errors.Wrap(err, "while reading cached token")
		}
		if token == "" {
			return fmt.Errorf("set %s or %s/%s or %s", tokenEnvVar, roleIDEnvVar, secretEnvVar, k8sRoleEnvVar)
		}
	} else {
		resp, err := c.Logical().Write(fmt.Sprintf("auth/%s/login", method), data)
		if err != nil {
			return errors.Wrapf(err, "while logging into vault using method %s", method)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("while logging into vault: no auth info in response")
		}
		token = resp.Auth.ClientToken
	}

	c.SetToken(token)
	return nil
}

// loginData returns the auth method mount and login payload configured in the environment.
// An empty method means no login method is configured.
func loginData() (string, map[string]interface{}, error) {
	roleID := os.Getenv(roleIDEnvVar)
	secretID := os.Getenv(secretEnvVar)
	k8sRole := os.Getenv(k8sRoleEnvVar)

	switch {
	case roleID != "" && secretID != "":
		return "approle", map[string]interface{}{"role_id": roleID, "secret_id": secretID}, nil
	case k8sRole != "":
		jwt, err := os.ReadFile(ServiceAccountTokenPath)
		if err != nil {
			return "", nil, errors.Wrap(err, "while reading service account token")
		}
		mount := os.Getenv(k8sMountEnvVar)
		if mount == "" {
			mount = defaultK8sMount
		}
		return mount, map[string]interface{}{"role": k8sRole, "jwt": strings.TrimSpace(string(jwt))}, nil
	default:
		return "", nil, nil
	}
}

// readCachedToken attempts to read cached vault auth info from the users home directory, which is where
// `vault login` leaves it.
func readCachedToken() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ".vault-token")
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil // no cached token present
	}
	if err != nil {
		return "", err
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytes)), nil
}
