// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package tracing

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"go.elastic.co/apm/v2"
)

// agentLogger forwards APM agent messages to a logr.Logger. Warnings are logged at info level.
type agentLogger struct {
	log logr.Logger
}

var _ apm.Logger = agentLogger{}

// NewLogAdapter returns a logger suitable for apm.Tracer.SetLogger.
func NewLogAdapter(log logr.Logger) apm.Logger {
	return agentLogger{log: log.WithName("agent")}
}

func (l agentLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(errors.Errorf(format, args...), "APM agent error")
}

func (l agentLogger) Warningf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...), "severity", "warning")
}

func (l agentLogger) Debugf(format string, args ...interface{}) {
	l.log.V(1).Info(fmt.Sprintf(format, args...))
}
