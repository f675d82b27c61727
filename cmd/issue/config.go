// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package issue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/elastic/edge-credentials/pkg/csr"
	"github.com/elastic/edge-credentials/pkg/lifecycle"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
	"github.com/elastic/edge-credentials/pkg/validation"
)

const (
	EnvPrefix = "NUVLAEDGE"

	IdentityFlag            = "identity"
	NamespaceKeyFlag        = "namespace-key"
	ApprovalTimeoutFlag     = "approval-timeout"
	PollIntervalFlag        = "poll-interval"
	StorageFlag             = "storage"
	StoragePathFlag         = "storage-path"
	SecretNamespaceFlag     = "secret-namespace"
	VaultPathFlag           = "vault-path"
	CSRNameFlag             = "csr-name"
	SignerNameFlag          = "signer-name"
	CertExpirationFlag      = "cert-expiration"
	TrustAnchorFlag         = "trust-anchor"
	APIEndpointFlag         = "api-endpoint"
	ProbeSkipServerNameFlag = "probe-skip-server-name"
	ProbeTimeoutFlag        = "probe-timeout"
	BindClusterRoleFlag     = "bind-cluster-role"
	LockFlag                = "lock"
	MetricsPortFlag         = "metrics-port"
	EnableTracingFlag       = "enable-tracing"

	DefaultIdentity    = "nuvla"
	DefaultStoragePath = "/srv/nuvlaedge/shared"
	DefaultVaultPath   = "secret/nuvlaedge"
	DefaultMetricsPort = 0 // disabled
)

// StorageKind selects the credential store backend.
type StorageKind string

const (
	FileStorage   StorageKind = "file"
	SecretStorage StorageKind = "secret"
	VaultStorage  StorageKind = "vault"
)

var storageKinds = []StorageKind{FileStorage, SecretStorage, VaultStorage}

// Options is the configuration of the issue command.
type Options struct {
	Lifecycle lifecycle.Config

	Storage         StorageKind
	StoragePath     string
	SecretNamespace string
	VaultPath       string

	SignerName     string
	CertExpiration time.Duration

	APIEndpoint         string
	ProbeSkipServerName bool
	ProbeTimeout        time.Duration

	BindClusterRole string
	Lock            bool
	MetricsPort     int
	EnableTracing   bool
}

// BindFlags declares the command flags and binds them to environment variables prefixed with EnvPrefix.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	flags.String(IdentityFlag, DefaultIdentity, "Name of the identity, used as certificate common name and binding subject")
	flags.String(NamespaceKeyFlag, "", "Key isolating the material of this identity in shared storage (defaults to the identity)")
	flags.String(ApprovalTimeoutFlag, lifecycle.DefaultApprovalTimeout.String(), "How long to wait for the certificate signing request to be approved, as a duration or a number of seconds")
	flags.String(PollIntervalFlag, csr.DefaultPollInterval.String(), "Interval between two certificate signing request status checks, as a duration or a number of seconds")
	flags.String(StorageFlag, string(FileStorage), fmt.Sprintf("Credential store backend, one of %v", storageKinds))
	flags.String(StoragePathFlag, DefaultStoragePath, "Directory holding credentials when using the file store")
	flags.String(SecretNamespaceFlag, "", "Namespace of the Secret holding credentials when using the secret store")
	flags.String(VaultPathFlag, DefaultVaultPath, "KV mount path holding credentials when using the vault store")
	flags.String(CSRNameFlag, "", "Name of the certificate signing request (defaults to <namespace-key>-csr)")
	flags.String(SignerNameFlag, csr.DefaultSignerName, "Signer requested to issue the certificate")
	flags.String(CertExpirationFlag, "0", "Requested certificate lifetime, at least 10m, as a duration or a number of seconds. 0 leaves it to the signer")
	flags.String(TrustAnchorFlag, lifecycle.DefaultTrustAnchorPath, "Path to the PEM CA certificate issued credentials must chain up to")
	flags.String(APIEndpointFlag, validation.DefaultEndpoint, "HTTPS endpoint probed with the credentials, empty disables the probe")
	flags.Bool(ProbeSkipServerNameFlag, false, "Verify the probed endpoint certificate chain without matching its server name")
	flags.String(ProbeTimeoutFlag, validation.DefaultProbeTimeout.String(), "Timeout of the probe request, as a duration or a number of seconds")
	flags.String(BindClusterRoleFlag, "", "ClusterRole bound to the identity once credentials are issued, empty disables binding")
	flags.Bool(LockFlag, true, "Hold an exclusive file lock during the run when using the file store")
	flags.Int(MetricsPortFlag, DefaultMetricsPort, "Port to serve Prometheus metrics on during the run, 0 disables it")
	flags.Bool(EnableTracingFlag, false, "Enable APM tracing. Endpoint, token etc are to be configured via ELASTIC_APM_* environment variables")
	ulog.BindFlags(flags)

	// enable using dashed notation in flags and underscores in env
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(flags)
}

// NewOptionsFromFlags reads and validates the options bound by BindFlags.
func NewOptionsFromFlags(v *viper.Viper) (Options, error) {
	identity, err := lifecycle.NewIdentity(v.GetString(IdentityFlag), v.GetString(NamespaceKeyFlag))
	if err != nil {
		return Options{}, err
	}

	var approvalTimeout, pollInterval, certExpiration, probeTimeout time.Duration
	durations := map[string]*time.Duration{
		ApprovalTimeoutFlag: &approvalTimeout,
		PollIntervalFlag:    &pollInterval,
		CertExpirationFlag:  &certExpiration,
		ProbeTimeoutFlag:    &probeTimeout,
	}
	for name, d := range durations {
		if *d, err = getDuration(v, name); err != nil {
			return Options{}, err
		}
	}

	opts := Options{
		Lifecycle: lifecycle.Config{
			Identity:        identity,
			TrustAnchorPath: v.GetString(TrustAnchorFlag),
			ApprovalTimeout: approvalTimeout,
			PollInterval:    pollInterval,
			CSRName:         v.GetString(CSRNameFlag),
		},
		Storage:             StorageKind(v.GetString(StorageFlag)),
		StoragePath:         v.GetString(StoragePathFlag),
		SecretNamespace:     v.GetString(SecretNamespaceFlag),
		VaultPath:           v.GetString(VaultPathFlag),
		SignerName:          v.GetString(SignerNameFlag),
		CertExpiration:      certExpiration,
		APIEndpoint:         v.GetString(APIEndpointFlag),
		ProbeSkipServerName: v.GetBool(ProbeSkipServerNameFlag),
		ProbeTimeout:        probeTimeout,
		BindClusterRole:     v.GetString(BindClusterRoleFlag),
		Lock:                v.GetBool(LockFlag),
		MetricsPort:         v.GetInt(MetricsPortFlag),
		EnableTracing:       v.GetBool(EnableTracingFlag),
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// getDuration reads a duration option. A bare integer is a number of seconds.
func getDuration(v *viper.Viper, name string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(name))
	if raw == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid value %q for --%s", raw, name)
	}
	return d, nil
}

// Validate checks the options that the lifecycle configuration does not cover.
func (o Options) Validate() error {
	if err := o.Lifecycle.Validate(); err != nil {
		return err
	}
	switch o.Storage {
	case FileStorage:
		if o.StoragePath == "" {
			return errors.Errorf("--%s is required with the %s store", StoragePathFlag, FileStorage)
		}
	case SecretStorage:
		if o.SecretNamespace == "" {
			return errors.Errorf("--%s is required with the %s store", SecretNamespaceFlag, SecretStorage)
		}
	case VaultStorage:
		if o.VaultPath == "" {
			return errors.Errorf("--%s is required with the %s store", VaultPathFlag, VaultStorage)
		}
	default:
		return errors.Errorf("unknown storage %q, expected one of %v", o.Storage, storageKinds)
	}
	if err := csr.CheckExpiration(o.CertExpiration); err != nil {
		return errors.Wrapf(err, "invalid --%s", CertExpirationFlag)
	}
	if o.MetricsPort < 0 {
		return errors.Errorf("--%s must not be negative", MetricsPortFlag)
	}
	return nil
}
