// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package tracing

import (
	"go.elastic.co/apm/v2"

	"github.com/elastic/edge-credentials/pkg/about"
	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
)

var log = ulog.Log.WithName("tracing")

// NewTracer returns a new APM tracer with the logger in log configured.
// Endpoint, token and sampling are configured through the standard ELASTIC_APM_* environment variables.
func NewTracer(serviceName string) *apm.Tracer {
	tracer, err := apm.NewTracer(serviceName, about.GetBuildInfo().VersionString())
	if err != nil {
		// don't fail the application because tracing fails
		log.Error(err, "failed to create tracer for "+serviceName)
		return nil
	}
	tracer.SetLogger(NewLogAdapter(log))
	return tracer
}
