// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rbac

import (
	"context"

	"github.com/pkg/errors"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/elastic/edge-credentials/pkg/utils/k8s"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
)

const (
	// DefaultBindingPrefix prefixes the name of every ClusterRoleBinding created by the binder.
	DefaultBindingPrefix = "nuvla"

	ManagedByLabelName  = "app.kubernetes.io/managed-by"
	ManagedByLabelValue = "nuvlaedge-credentials"
)

var log = ulog.Log.WithName("rbac")

// ClusterRoleBinder binds a User subject to an existing ClusterRole.
type ClusterRoleBinder struct {
	c           k8s.Client
	clusterRole string
	prefix      string
}

// NewClusterRoleBinder returns a binder granting clusterRole.
func NewClusterRoleBinder(c k8s.Client, clusterRole string) *ClusterRoleBinder {
	return &ClusterRoleBinder{c: c, clusterRole: clusterRole, prefix: DefaultBindingPrefix}
}

// BindingName returns the name of the ClusterRoleBinding of subject.
func (b *ClusterRoleBinder) BindingName(subject string) string {
	return b.prefix + "-" + sanitize(subject)
}

func (b *ClusterRoleBinder) expected(subject string) rbacv1.ClusterRoleBinding {
	return rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:   b.BindingName(subject),
			Labels: map[string]string{ManagedByLabelName: ManagedByLabelValue},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     b.clusterRole,
		},
		Subjects: []rbacv1.Subject{{
			APIGroup: rbacv1.GroupName,
			Kind:     rbacv1.UserKind,
			Name:     subject,
		}},
	}
}

// Bind creates or updates the ClusterRoleBinding of subject. The role itself is never created.
func (b *ClusterRoleBinder) Bind(ctx context.Context, subject string) error {
	if subject == "" {
		return errors.New("subject must not be empty")
	}
	expected := b.expected(subject)

	var actual rbacv1.ClusterRoleBinding
	err := b.c.Get(ctx, k8s.ExtractNamespacedName(&expected), &actual)
	switch {
	case apierrors.IsNotFound(err):
		log.Info("Creating cluster role binding", "name", expected.Name, "cluster_role", b.clusterRole, "subject", subject)
		return errors.Wrapf(b.c.Create(ctx, &expected), "while creating cluster role binding %s", expected.Name)
	case err != nil:
		return errors.Wrapf(err, "while getting cluster role binding %s", expected.Name)
	}

	// roleRef is immutable
	if !equality.Semantic.DeepEqual(actual.RoleRef, expected.RoleRef) {
		log.Info("Replacing cluster role binding", "name", expected.Name, "cluster_role", b.clusterRole)
		if err := b.c.Delete(ctx, &actual); err != nil && !apierrors.IsNotFound(err) {
			return errors.Wrapf(err, "while deleting cluster role binding %s", expected.Name)
		}
		return errors.Wrapf(b.c.Create(ctx, &expected), "while creating cluster role binding %s", expected.Name)
	}

	if equality.Semantic.DeepEqual(actual.Subjects, expected.Subjects) {
		return nil
	}
	log.Info("Updating cluster role binding subjects", "name", expected.Name, "subject", subject)
	actual.Subjects = expected.Subjects
	if actual.Labels == nil {
		actual.Labels = map[string]string{}
	}
	actual.Labels[ManagedByLabelName] = ManagedByLabelValue
	return errors.Wrapf(b.c.Update(ctx, &actual), "while updating cluster role binding %s", expected.Name)
}

// sanitize turns subject into a valid object name segment.
func sanitize(subject string) string {
	out := make([]byte, 0, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '.':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
