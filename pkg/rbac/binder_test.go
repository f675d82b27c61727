// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/elastic/edge-credentials/pkg/utils/compare"
	"github.com/elastic/edge-credentials/pkg/utils/k8s"
)

func getBinding(t *testing.T, c k8s.Client, name string) rbacv1.ClusterRoleBinding {
	t.Helper()
	var crb rbacv1.ClusterRoleBinding
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Name: name}, &crb))
	return crb
}

func TestClusterRoleBinder_Bind(t *testing.T) {
	expectedSubjects := []rbacv1.Subject{{APIGroup: rbacv1.GroupName, Kind: rbacv1.UserKind, Name: "nuvla"}}
	expectedRoleRef := rbacv1.RoleRef{APIGroup: rbacv1.GroupName, Kind: "ClusterRole", Name: "nuvla-edge"}

	tests := []struct {
		name     string
		existing []rbacv1.ClusterRoleBinding
	}{
		{
			name: "create",
		},
		{
			name: "up to date",
			existing: []rbacv1.ClusterRoleBinding{{
				ObjectMeta: metav1.ObjectMeta{Name: "nuvla-nuvla"},
				RoleRef:    expectedRoleRef,
				Subjects:   expectedSubjects,
			}},
		},
		{
			name: "update subjects",
			existing: []rbacv1.ClusterRoleBinding{{
				ObjectMeta: metav1.ObjectMeta{Name: "nuvla-nuvla"},
				RoleRef:    expectedRoleRef,
				Subjects:   []rbacv1.Subject{{APIGroup: rbacv1.GroupName, Kind: rbacv1.UserKind, Name: "someone-else"}},
			}},
		},
		{
			name: "replace role ref",
			existing: []rbacv1.ClusterRoleBinding{{
				ObjectMeta: metav1.ObjectMeta{Name: "nuvla-nuvla"},
				RoleRef:    rbacv1.RoleRef{APIGroup: rbacv1.GroupName, Kind: "ClusterRole", Name: "cluster-admin"},
				Subjects:   expectedSubjects,
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := k8s.NewFakeClient()
			for i := range tt.existing {
				require.NoError(t, c.Create(context.Background(), &tt.existing[i]))
			}
			b := NewClusterRoleBinder(c, "nuvla-edge")
			require.NoError(t, b.Bind(context.Background(), "nuvla"))

			crb := getBinding(t, c, "nuvla-nuvla")
			compare.EqualsSemantically(t, expectedRoleRef, crb.RoleRef)
			compare.EqualsSemantically(t, expectedSubjects, crb.Subjects)

			var list rbacv1.ClusterRoleBindingList
			require.NoError(t, c.List(context.Background(), &list))
			assert.Len(t, list.Items, 1)
		})
	}
}

func TestClusterRoleBinder_BindingName(t *testing.T) {
	b := NewClusterRoleBinder(k8s.NewFakeClient(), "nuvla-edge")
	assert.Equal(t, "nuvla-nuvla", b.BindingName("nuvla"))
	assert.Equal(t, "nuvla-nuvlabox-4f9a", b.BindingName("NuvlaBox/4f9a"))
}

func TestClusterRoleBinder_Errors(t *testing.T) {
	boom := errors.New("boom")
	b := NewClusterRoleBinder(k8s.NewFailingClient(boom), "nuvla-edge")
	require.ErrorIs(t, b.Bind(context.Background(), "nuvla"), boom)
	require.Error(t, NewClusterRoleBinder(k8s.NewFakeClient(), "nuvla-edge").Bind(context.Background(), ""))
}
