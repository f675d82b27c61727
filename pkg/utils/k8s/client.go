// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package k8s

import (
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Scheme returns the scheme used by every client of this module. It holds the built-in API groups,
// certificates.k8s.io and rbac.authorization.k8s.io included.
func Scheme() *runtime.Scheme {
	return clientgoscheme.Scheme
}

type Client = client.Client

// NewClient returns a client talking to the API server described by cfg.
func NewClient(cfg *rest.Config) (Client, error) {
	c, err := client.New(cfg, client.Options{Scheme: Scheme()})
	if err != nil {
		return nil, errors.Wrap(err, "while creating Kubernetes client")
	}
	return c, nil
}
