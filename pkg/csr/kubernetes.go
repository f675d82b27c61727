// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package csr

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	certificatesv1 "k8s.io/api/certificates/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"

	"github.com/elastic/edge-credentials/pkg/certificates"
	"github.com/elastic/edge-credentials/pkg/utils/k8s"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
)

const (
	// DefaultSignerName is the built-in signer issuing client certificates trusted by the API server.
	DefaultSignerName = certificatesv1.KubeAPIServerClientSignerName

	// IdentityLabelName is set on every request with the requesting identity as value.
	IdentityLabelName = "nuvla.io/identity"

	// MinExpiration is the shortest certificate lifetime the API server accepts.
	MinExpiration = 10 * time.Minute
	// MaxExpiration is the longest lifetime expressible in spec.expirationSeconds.
	MaxExpiration = math.MaxInt32 * time.Second
)

// CheckExpiration returns an error if d cannot be requested as certificate lifetime. Zero is accepted.
func CheckExpiration(d time.Duration) error {
	if d != 0 && (d < MinExpiration || d > MaxExpiration) {
		return errors.Errorf("certificate expiration must be between %s and %s, got %s", MinExpiration, MaxExpiration, d)
	}
	return nil
}

var log = ulog.Log.WithName("csr")

// KubernetesClient is a Client backed by certificates.k8s.io/v1 CertificateSigningRequest resources.
type KubernetesClient struct {
	c          k8s.Client
	signerName string
	expiration *time.Duration
	labels     map[string]string
	now        func() time.Time
}

// Option configures a KubernetesClient.
type Option func(*KubernetesClient)

// WithSignerName sets the signer requested to issue the certificate.
func WithSignerName(name string) Option {
	return func(k *KubernetesClient) {
		if name != "" {
			k.signerName = name
		}
	}
}

// WithExpiration sets the requested certificate lifetime. Zero leaves it to the signer.
func WithExpiration(d time.Duration) Option {
	return func(k *KubernetesClient) {
		if d > 0 {
			k.expiration = &d
		}
	}
}

// WithLabels adds labels to every submitted request.
func WithLabels(labels map[string]string) Option {
	return func(k *KubernetesClient) {
		for key, value := range labels {
			k.labels[key] = value
		}
	}
}

// NewKubernetesClient returns a Client creating CertificateSigningRequests with c.
func NewKubernetesClient(c k8s.Client, opts ...Option) *KubernetesClient {
	k := &KubernetesClient{
		c:          c,
		signerName: DefaultSignerName,
		labels:     map[string]string{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

var _ Client = &KubernetesClient{}

func (k *KubernetesClient) Submit(ctx context.Context, name string, req *certificates.CertificateRequest) (Handle, error) {
	if req == nil {
		return Handle{}, errors.New("certificate request must not be nil")
	}
	if k.expiration != nil {
		if err := CheckExpiration(*k.expiration); err != nil {
			return Handle{}, err
		}
	}

	// a previous attempt may have left a request with the same name behind
	previous := &certificatesv1.CertificateSigningRequest{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if err := k.c.Delete(ctx, previous); err != nil && !apierrors.IsNotFound(err) {
		log.V(1).Info("Ignoring error while deleting previous certificate request", "csr", name, "error", err.Error())
	}

	labels := make(map[string]string, len(k.labels)+1)
	for key, value := range k.labels {
		labels[key] = value
	}
	labels[IdentityLabelName] = req.Subject.CommonName

	obj := &certificatesv1.CertificateSigningRequest{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
		Spec: certificatesv1.CertificateSigningRequestSpec{
			Request:    req.PEM(),
			SignerName: k.signerName,
			Usages: []certificatesv1.KeyUsage{
				certificatesv1.UsageDigitalSignature,
				certificatesv1.UsageKeyEncipherment,
				certificatesv1.UsageClientAuth,
			},
		},
	}
	if k.expiration != nil {
		obj.Spec.ExpirationSeconds = ptr.To(int32(k.expiration.Seconds()))
	}

	if err := k.c.Create(ctx, obj); err != nil {
		return Handle{}, errors.Wrapf(err, "while creating certificate signing request %s", name)
	}
	log.V(1).Info("Certificate signing request created", "csr", name, "signer", k.signerName)
	return Handle{Name: name, SubmittedAt: k.now()}, nil
}

func (k *KubernetesClient) Status(ctx context.Context, h Handle) (Status, error) {
	var obj certificatesv1.CertificateSigningRequest
	if err := k.c.Get(ctx, types.NamespacedName{Name: h.Name}, &obj); err != nil {
		if apierrors.IsNotFound(err) {
			return Status{Phase: PhaseNotFound}, nil
		}
		return Status{}, errors.Wrapf(err, "while getting certificate signing request %s", h.Name)
	}
	return statusOf(obj), nil
}

// statusOf maps the request conditions to a Status. Denied or Failed take precedence over Approved.
func statusOf(obj certificatesv1.CertificateSigningRequest) Status {
	approved := false
	for _, cond := range obj.Status.Conditions {
		if cond.Status == corev1.ConditionFalse || cond.Status == corev1.ConditionUnknown {
			continue
		}
		switch cond.Type {
		case certificatesv1.CertificateDenied, certificatesv1.CertificateFailed:
			return Status{Phase: PhaseDenied, Reason: conditionReason(cond)}
		case certificatesv1.CertificateApproved:
			approved = true
		}
	}
	if approved {
		return Status{Phase: PhaseApproved, Certificate: obj.Status.Certificate}
	}
	return Status{Phase: PhasePending}
}

func conditionReason(cond certificatesv1.CertificateSigningRequestCondition) string {
	switch {
	case cond.Reason != "" && cond.Message != "":
		return fmt.Sprintf("%s: %s: %s", cond.Type, cond.Reason, cond.Message)
	case cond.Reason != "":
		return fmt.Sprintf("%s: %s", cond.Type, cond.Reason)
	default:
		return string(cond.Type)
	}
}

func (k *KubernetesClient) Delete(ctx context.Context, h Handle) error {
	obj := &certificatesv1.CertificateSigningRequest{ObjectMeta: metav1.ObjectMeta{Name: h.Name}}
	if err := k.c.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "while deleting certificate signing request %s", h.Name)
	}
	return nil
}
