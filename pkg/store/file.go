// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/elastic/edge-credentials/pkg/utils/fs"
)

const (
	dirPerm  os.FileMode = 0o700
	certPerm os.FileMode = 0o644
	keyPerm  os.FileMode = 0o600
)

var materialFiles = []string{CAFileName, CertFileName, KeyFileName}

// FileStore keeps a bundle in <root>/<namespaceKey>, one file per PEM document plus the liveness marker.
type FileStore struct {
	dir string
}

var _ Store = &FileStore{}

// NewFileStore returns a store for the identity namespaceKey under root.
func NewFileStore(root, namespaceKey string) *FileStore {
	return &FileStore{dir: filepath.Join(root, namespaceKey)}
}

// Dir returns the directory holding the bundle.
func (s *FileStore) Dir() string {
	return s.dir
}

// LockPath returns the path of the lock file guarding the bundle, next to its directory.
func (s *FileStore) LockPath() string {
	return s.dir + ".lock"
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Load(_ context.Context) (Bundle, error) {
	marker, err := os.ReadFile(s.path(LivenessFileName))
	if os.IsNotExist(err) {
		return Bundle{}, ErrNotFound
	}
	if err != nil {
		return Bundle{}, errors.Wrapf(err, "while reading %s", s.path(LivenessFileName))
	}

	contents := make(map[string][]byte, len(materialFiles))
	for _, name := range materialFiles {
		data, err := os.ReadFile(s.path(name))
		if os.IsNotExist(err) {
			// a marker without material is not a bundle
			return Bundle{}, ErrNotFound
		}
		if err != nil {
			return Bundle{}, errors.Wrapf(err, "while reading %s", s.path(name))
		}
		contents[name] = data
	}

	return Bundle{
		CACert:     contents[CAFileName],
		Cert:       contents[CertFileName],
		PrivateKey: contents[KeyFileName],
		IssuedAt:   decodeMarker(marker),
	}, nil
}

func (s *FileStore) Save(_ context.Context, b Bundle) error {
	if !b.Complete() {
		return errors.New("refusing to save an incomplete bundle")
	}
	if err := s.writeMaterial(b); err != nil {
		return err
	}
	return s.writeMarker(b)
}

// writeMaterial invalidates the stored bundle then replaces each PEM file.
func (s *FileStore) writeMaterial(b Bundle) error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return errors.Wrapf(err, "while creating %s", s.dir)
	}
	if err := fs.RemoveIfExists(s.path(LivenessFileName)); err != nil {
		return errors.Wrapf(err, "while removing %s", s.path(LivenessFileName))
	}
	if err := fs.SyncDir(s.dir); err != nil {
		return errors.Wrapf(err, "while syncing %s", s.dir)
	}

	for _, f := range []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{name: CAFileName, data: b.CACert, perm: certPerm},
		{name: CertFileName, data: b.Cert, perm: certPerm},
		{name: KeyFileName, data: b.PrivateKey, perm: keyPerm},
	} {
		if err := fs.WriteFileAtomic(s.path(f.name), f.data, f.perm); err != nil {
			return err
		}
	}
	if err := fs.SyncDir(s.dir); err != nil {
		return errors.Wrapf(err, "while syncing %s", s.dir)
	}
	return nil
}

func (s *FileStore) writeMarker(b Bundle) error {
	if err := fs.WriteFileAtomic(s.path(LivenessFileName), encodeMarker(issuedAt(b)), certPerm); err != nil {
		return err
	}
	if err := fs.SyncDir(s.dir); err != nil {
		return errors.Wrapf(err, "while syncing %s", s.dir)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context) error {
	// the marker goes first so that a partial delete leaves no bundle behind
	if err := fs.RemoveIfExists(s.path(LivenessFileName)); err != nil {
		return errors.Wrapf(err, "while removing %s", s.path(LivenessFileName))
	}

	var result *multierror.Error
	for _, name := range materialFiles {
		if err := fs.RemoveIfExists(s.path(name)); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "while removing %s", s.path(name)))
		}
	}
	if exists, _ := fs.FileExists(s.dir); exists {
		if err := fs.SyncDir(s.dir); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "while syncing %s", s.dir))
		}
	}
	return result.ErrorOrNil()
}
