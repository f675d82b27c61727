// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package lifecycle

import (
	"context"
	"crypto/x509"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.elastic.co/apm/v2"

	"github.com/elastic/edge-credentials/pkg/certificates"
	"github.com/elastic/edge-credentials/pkg/csr"
	"github.com/elastic/edge-credentials/pkg/store"
	"github.com/elastic/edge-credentials/pkg/tracing"
	"github.com/elastic/edge-credentials/pkg/utils/cryptutil"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
	"github.com/elastic/edge-credentials/pkg/utils/metrics"
	"github.com/elastic/edge-credentials/pkg/validation"
)

const transactionType = "credentials"

// Binder grants cluster privileges to an issued identity.
type Binder interface {
	Bind(ctx context.Context, subject string) error
}

// BinderFunc adapts a function to a Binder.
type BinderFunc func(ctx context.Context, subject string) error

func (f BinderFunc) Bind(ctx context.Context, subject string) error {
	return f(ctx, subject)
}

// NoopBinder grants nothing.
type NoopBinder struct{}

func (NoopBinder) Bind(context.Context, string) error {
	return nil
}

// Locker serializes runs sharing the same storage.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Checker validates a bundle.
type Checker interface {
	Check(ctx context.Context, b store.Bundle) validation.Result
}

// Params are the collaborators of a Manager.
type Params struct {
	Config    Config
	Store     store.Store
	CA        csr.Client
	Validator Checker
	// Binder defaults to NoopBinder.
	Binder Binder
	// Locker is optional.
	Locker Locker
	// Tracer is optional, nil disables tracing.
	Tracer *apm.Tracer
}

// Manager drives a credential lifecycle run for a single identity.
type Manager struct {
	config    Config
	store     store.Store
	ca        csr.Client
	validator Checker
	binder    Binder
	locker    Locker
	tracer    *apm.Tracer
	now       func() time.Time
}

// NewManager returns a Manager, or an error if the configuration is invalid or a collaborator is missing.
func NewManager(p Params) (*Manager, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	switch {
	case p.Store == nil:
		return nil, errors.New("a credential store is required")
	case p.CA == nil:
		return nil, errors.New("a CA client is required")
	case p.Validator == nil:
		return nil, errors.New("a validator is required")
	}
	binder := p.Binder
	if binder == nil {
		binder = NoopBinder{}
	}
	return &Manager{
		config:    p.Config,
		store:     p.Store,
		ca:        p.CA,
		validator: p.Validator,
		binder:    binder,
		locker:    p.Locker,
		tracer:    p.Tracer,
		now:       time.Now,
	}, nil
}

// Result is the outcome of a successful run.
type Result struct {
	// State is Reuse or Done.
	State  State
	Bundle store.Bundle
	// Reused is true if the stored bundle was valid and no request was submitted.
	Reused bool
}

// Run executes the lifecycle until a valid bundle is stored, and returns it.
// Failures return a *StepError wrapping the typed cause.
func (m *Manager) Run(ctx context.Context) (result *Result, err error) {
	tx, ctx := tracing.NewTransaction(ctx, m.tracer, "credentials "+m.config.Identity.NamespaceKey, transactionType)
	defer tracing.EndTransaction(tx)

	runID := uuid.NewString()
	log := ulog.FromContext(ctx).WithName("lifecycle").WithValues("identity", m.config.Identity.Name, "run_id", runID)
	ctx = ulog.IntoContext(ctx, log)

	if m.locker != nil {
		if err := m.locker.Lock(ctx); err != nil {
			metrics.RunsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			if ctx.Err() != nil {
				err = errors.Wrapf(ErrCancelled, "while waiting for lock: %v", err)
			}
			return nil, tracing.CaptureError(ctx, &StepError{State: Start, Err: err})
		}
		defer func() {
			if err := m.locker.Unlock(); err != nil {
				log.Error(err, "Failed to release lock")
			}
		}()
	}

	r := &run{m: m, log: log, state: Start}
	result, err = r.execute(ctx)

	switch {
	case err != nil:
		metrics.RunsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error(err, "Credential lifecycle failed")
	case result.Reused:
		metrics.RunsTotal.WithLabelValues(metrics.OutcomeReused).Inc()
		log.Info("Reusing stored credentials")
	default:
		metrics.RunsTotal.WithLabelValues(metrics.OutcomeIssued).Inc()
		log.Info("New credentials issued")
	}
	return result, err
}

type stepFunc func(ctx context.Context) (State, error)

// run holds the material of a single run. It is never shared between goroutines.
type run struct {
	m     *Manager
	log   logr.Logger
	state State

	anchorPEM   []byte
	anchorCerts []*x509.Certificate
	existing    store.Bundle
	keyPair     *certificates.KeyPair
	request     *certificates.CertificateRequest
	handle      csr.Handle
	cert        []byte
	bundle      store.Bundle
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	r.transition(CheckCAAnchor)
	for !r.state.Terminal() {
		if ctx.Err() != nil {
			return nil, r.fail(ctx, errors.Wrapf(ErrCancelled, "before %s", r.state))
		}

		next, err := r.runStep(ctx, r.step(r.state))
		if err != nil {
			return nil, r.fail(ctx, err)
		}
		r.transition(next)
	}
	return &Result{State: r.state, Bundle: r.bundle, Reused: r.state == Reuse}, nil
}

func (r *run) runStep(ctx context.Context, step stepFunc) (State, error) {
	ctx, end := tracing.StartSpan(ctx, r.state.String())
	defer end()
	return step(ctx)
}

func (r *run) step(s State) stepFunc {
	switch s {
	case CheckCAAnchor:
		return r.checkCAAnchor
	case LoadExisting:
		return r.loadExisting
	case ValidateExisting:
		return r.validateExisting
	case IssueNew:
		return r.issueNew
	case GenerateKey:
		return r.generateKey
	case BuildCSR:
		return r.buildCSR
	case SubmitCSR:
		return r.submitCSR
	case AwaitApproval:
		return r.awaitApproval
	case FetchCert:
		return r.fetchCert
	case ValidateNew:
		return r.validateNew
	case Persist:
		return r.persist
	case BindPrivileges:
		return r.bindPrivileges
	default:
		return func(context.Context) (State, error) {
			return Failed, errors.Errorf("no step for state %s", s)
		}
	}
}

func (r *run) transition(to State) {
	r.log.Info("State transition", "from", r.state, "to", to)
	metrics.TransitionsTotal.WithLabelValues(to.String()).Inc()
	r.state = to
}

func (r *run) fail(ctx context.Context, err error) error {
	stepErr := &StepError{State: r.state, Err: err}
	r.transition(Failed)
	return tracing.CaptureError(ctx, stepErr)
}

func (r *run) checkCAAnchor(_ context.Context) (State, error) {
	path := r.m.config.TrustAnchorPath
	data, err := os.ReadFile(path)
	if err != nil {
		return Failed, &MissingTrustAnchorError{Path: path, Err: err}
	}
	certs, err := certificates.ParsePEMCerts(data)
	if err != nil {
		return Failed, &MissingTrustAnchorError{Path: path, Err: err}
	}
	if len(certs) == 0 {
		return Failed, &MissingTrustAnchorError{Path: path, Err: errors.New("no certificate found")}
	}
	r.anchorPEM = data
	r.anchorCerts = certs
	return LoadExisting, nil
}

func (r *run) loadExisting(ctx context.Context) (State, error) {
	b, err := r.m.store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		r.log.V(1).Info("No stored credentials")
		return IssueNew, nil
	}
	if err != nil {
		return Failed, errors.Wrap(err, "while loading stored credentials")
	}
	r.existing = b
	return ValidateExisting, nil
}

func (r *run) validateExisting(ctx context.Context) (State, error) {
	res := r.checkAnchor(r.existing)
	if res.Valid {
		res = r.m.validator.Check(ctx, r.existing)
	}
	if res.Valid {
		r.bundle = r.existing
		return Reuse, nil
	}

	r.log.Info("Stored credentials are invalid, issuing new ones", "reason", res.Reason)
	if err := r.m.store.Delete(ctx); err != nil {
		r.log.Error(err, "Failed to delete invalid credentials")
	}
	return IssueNew, nil
}

// checkAnchor requires the bundle CA to be the current trust anchor, so that a rotated cluster CA forces a new issuance.
func (r *run) checkAnchor(b store.Bundle) validation.Result {
	certs, err := certificates.ParsePEMCerts(b.CACert)
	if err != nil || !cryptutil.SameCertificates(certs, r.anchorCerts) {
		return validation.Result{Reason: "stored CA certificate differs from trust anchor"}
	}
	return validation.Result{Valid: true}
}

func (r *run) issueNew(_ context.Context) (State, error) {
	return GenerateKey, nil
}

func (r *run) generateKey(_ context.Context) (State, error) {
	kp, err := certificates.GenerateKeyPair(r.m.config.keyBits())
	if err != nil {
		return Failed, err
	}
	r.keyPair = kp
	return BuildCSR, nil
}

func (r *run) buildCSR(_ context.Context) (State, error) {
	req, err := certificates.BuildCSR(certificates.Subject{
		CommonName:   r.m.config.Identity.Name,
		Organization: r.m.config.organization(),
	}, r.keyPair)
	if err != nil {
		return Failed, err
	}
	r.request = req
	return SubmitCSR, nil
}

func (r *run) submitCSR(ctx context.Context) (State, error) {
	h, err := r.m.ca.Submit(ctx, r.m.config.csrName(), r.request)
	if err != nil {
		return Failed, err
	}
	r.handle = h
	r.log.Info("Certificate signing request submitted", "csr", h.Name)
	return AwaitApproval, nil
}

func (r *run) awaitApproval(ctx context.Context) (State, error) {
	start := r.m.now()
	cert, err := csr.AwaitApproval(ctx, r.m.ca, r.handle, r.m.config.ApprovalTimeout, r.m.config.pollInterval())
	metrics.ApprovalWaitSeconds.Observe(r.m.now().Sub(start).Seconds())
	if err != nil {
		// the request is left in place for an operator to inspect
		return Failed, err
	}
	r.cert = cert
	return FetchCert, nil
}

func (r *run) fetchCert(ctx context.Context) (State, error) {
	keyPEM, err := r.keyPair.PEM()
	if err != nil {
		return Failed, errors.Wrap(err, "while encoding private key")
	}
	r.bundle = store.Bundle{
		CACert:     r.anchorPEM,
		Cert:       r.cert,
		PrivateKey: keyPEM,
	}
	csr.Retire(ctx, r.m.ca, r.handle)
	return ValidateNew, nil
}

func (r *run) validateNew(ctx context.Context) (State, error) {
	if res := r.m.validator.Check(ctx, r.bundle); !res.Valid {
		return Failed, &InvalidBundleError{Reason: res.Reason}
	}
	return Persist, nil
}

func (r *run) persist(ctx context.Context) (State, error) {
	// the liveness marker has a one second resolution
	r.bundle.IssuedAt = r.m.now().Truncate(time.Second)
	if err := r.m.store.Save(ctx, r.bundle); err != nil {
		return Failed, errors.Wrap(err, "while persisting credentials")
	}
	return BindPrivileges, nil
}

func (r *run) bindPrivileges(ctx context.Context) (State, error) {
	if err := r.m.binder.Bind(ctx, r.m.config.Identity.Name); err != nil {
		return Failed, errors.Wrapf(err, "while binding privileges to %s", r.m.config.Identity.Name)
	}
	return Done, nil
}
