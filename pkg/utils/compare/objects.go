// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package compare

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/api/equality"
)

// EqualsSemantically fails t if have differs from want on any field set in want.
func EqualsSemantically(t *testing.T, want, have interface{}) {
	t.Helper()

	if !equality.Semantic.DeepDerivative(want, have) {
		t.Errorf("objects differ (-want +have):\n%s", cmp.Diff(want, have))
	}
}
