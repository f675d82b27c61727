// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

//go:build unix

package fs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nuvla.lock")
	first := NewFileLock(path)
	second := NewFileLock(path)

	require.NoError(t, first.Lock(context.Background()))
	require.Error(t, first.Lock(context.Background()), "lock is not reentrant")

	// the second lock cannot be acquired while the first one is held
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	require.Error(t, second.Lock(ctx))

	// it is acquired as soon as the first one is released
	acquired := make(chan error, 1)
	go func() {
		acquired <- second.Lock(context.Background())
	}()
	require.NoError(t, first.Unlock())
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "lock not acquired after release")
	}
	require.NoError(t, second.Unlock())
	require.NoError(t, second.Unlock())
}
