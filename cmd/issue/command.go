// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package issue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.elastic.co/apm/v2"
	"go.uber.org/automaxprocs/maxprocs"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/elastic/edge-credentials/pkg/csr"
	"github.com/elastic/edge-credentials/pkg/lifecycle"
	"github.com/elastic/edge-credentials/pkg/rbac"
	"github.com/elastic/edge-credentials/pkg/store"
	"github.com/elastic/edge-credentials/pkg/tracing"
	"github.com/elastic/edge-credentials/pkg/utils/fs"
	"github.com/elastic/edge-credentials/pkg/utils/k8s"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
	"github.com/elastic/edge-credentials/pkg/utils/metrics"
	"github.com/elastic/edge-credentials/pkg/utils/vault"
	"github.com/elastic/edge-credentials/pkg/validation"
)

const serviceName = "nuvlaedge-credentials"

var log = ulog.Log.WithName("issue")

// Command returns the command that ensures valid client credentials are stored for an identity.
func Command() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Ensure valid client credentials are stored for an identity",
		Long: `Reuse the stored client credentials of an identity if they are valid, or generate a new key,
submit a certificate signing request to the cluster and store the issued certificate once it is approved.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return doRun(v)
		},
	}
	if err := BindFlags(cmd, v); err != nil {
		panic(fmt.Sprintf("Failed to bind flags: %v", err))
	}
	return cmd
}

func doRun(v *viper.Viper) error {
	opts, err := NewOptionsFromFlags(v)
	if err != nil {
		return err
	}

	var tracer *apm.Tracer
	if opts.EnableTracing {
		tracer = tracing.NewTracer(serviceName)
	}
	ulog.InitLogger(ulog.WithTracer(tracer))

	if _, err := maxprocs.Set(maxprocs.Logger(func(s string, i ...interface{}) {
		log.Info(fmt.Sprintf(s, i...))
	})); err != nil {
		log.Error(err, "Error setting GOMAXPROCS")
	}
	if limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	); err != nil {
		log.V(1).Info("Memory limit not set", "reason", err.Error())
	} else {
		log.V(1).Info("Memory limit set", "limit", limit)
	}

	ctx := signals.SetupSignalHandler()

	cfg, err := ctrl.GetConfig()
	if err != nil {
		return errors.Wrap(err, "while loading cluster configuration")
	}
	c, err := k8s.NewClient(cfg)
	if err != nil {
		return err
	}

	params, err := newParams(c, opts)
	if err != nil {
		return err
	}
	params.Tracer = tracer

	if opts.MetricsPort > 0 {
		metricsCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := metrics.Serve(metricsCtx, opts.MetricsPort); err != nil {
				log.Error(err, "Metrics server stopped")
			}
		}()
	}

	m, err := lifecycle.NewManager(params)
	if err != nil {
		return err
	}
	result, err := m.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("Credentials ready",
		"identity", opts.Lifecycle.Identity.Name,
		"state", result.State.String(),
		"reused", result.Reused,
		"issued_at", result.Bundle.IssuedAt,
	)
	return nil
}

// newParams assembles the lifecycle collaborators selected by opts.
func newParams(c k8s.Client, opts Options) (lifecycle.Params, error) {
	s, lock, err := newStore(c, opts)
	if err != nil {
		return lifecycle.Params{}, err
	}

	csrOpts := []csr.Option{
		csr.WithSignerName(opts.SignerName),
		csr.WithLabels(map[string]string{csr.IdentityLabelName: opts.Lifecycle.Identity.NamespaceKey}),
	}
	if opts.CertExpiration > 0 {
		csrOpts = append(csrOpts, csr.WithExpiration(opts.CertExpiration))
	}

	var prober validation.Prober
	if opts.APIEndpoint != "" {
		prober = &validation.HTTPSProber{
			Endpoint:       opts.APIEndpoint,
			Timeout:        opts.ProbeTimeout,
			SkipServerName: opts.ProbeSkipServerName,
		}
	}

	var binder lifecycle.Binder = lifecycle.NoopBinder{}
	if opts.BindClusterRole != "" {
		binder = rbac.NewClusterRoleBinder(c, opts.BindClusterRole)
	}

	params := lifecycle.Params{
		Config:    opts.Lifecycle,
		Store:     s,
		CA:        csr.NewKubernetesClient(c, csrOpts...),
		Validator: validation.NewValidator(prober),
		Binder:    binder,
	}
	if lock != nil {
		params.Locker = lock
	}
	return params, nil
}

func newStore(c k8s.Client, opts Options) (store.Store, *fs.FileLock, error) {
	key := opts.Lifecycle.Identity.NamespaceKey
	switch opts.Storage {
	case FileStorage:
		if err := os.MkdirAll(filepath.Clean(opts.StoragePath), 0o755); err != nil {
			return nil, nil, errors.Wrapf(err, "while creating storage directory %s", opts.StoragePath)
		}
		s := store.NewFileStore(opts.StoragePath, key)
		if !opts.Lock {
			return s, nil, nil
		}
		return s, fs.NewFileLock(s.LockPath()), nil
	case SecretStorage:
		return store.NewSecretStore(c, opts.SecretNamespace, key), nil, nil
	case VaultStorage:
		vc, err := vault.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return store.NewVaultStore(vc, opts.VaultPath, key), nil, nil
	default:
		return nil, nil, errors.Errorf("unknown storage %q", opts.Storage)
	}
}
