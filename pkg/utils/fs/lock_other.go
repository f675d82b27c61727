// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

//go:build !unix

package fs

import (
	"context"

	"github.com/pkg/errors"
)

// FileLock is not supported on this platform.
type FileLock struct {
	path string
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) Lock(_ context.Context) error {
	return errors.Errorf("file locking is not supported on this platform (%s)", l.path)
}

func (l *FileLock) Unlock() error {
	return nil
}
