// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package tracing

import (
	"context"
	"net/http"

	"go.elastic.co/apm/v2"
)

const (
	SpanTypeApp string = "app"
)

// NewTransaction starts a new transaction and returns a copy of ctx holding it.
// A nil tracer means tracing is disabled: ctx is returned unchanged.
func NewTransaction(ctx context.Context, t *apm.Tracer, name string, txType string) (*apm.Transaction, context.Context) {
	if t == nil {
		return nil, ctx
	}
	tx := t.StartTransaction(name, txType)
	return tx, apm.ContextWithTransaction(ctx, tx)
}

// EndTransaction nil safe version of APM agents tx.End()
func EndTransaction(tx *apm.Transaction) {
	if tx != nil {
		tx.End()
	}
}

// StartSpan starts an app span named name if ctx carries a transaction. The returned func ends the span.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
	if apm.TransactionFromContext(ctx) == nil {
		// no transaction in the context implicates disabled tracing
		return ctx, func() {}
	}
	span, spanCtx := apm.StartSpan(ctx, name, SpanTypeApp)
	return spanCtx, span.End
}

// CaptureError wraps APM agent func of the same name and auto-sends, returning the original error.
func CaptureError(ctx context.Context, err error) error {
	if ctx != nil && err != nil {
		if capturedErr := apm.CaptureError(ctx, err); capturedErr != nil {
			capturedErr.Send()
		}
	}
	return err // dropping the apm wrapper here
}

// RequestName names outgoing HTTP spans after method and host, leaving out paths that may carry identifiers.
func RequestName(req *http.Request) string {
	return req.Method + " " + req.URL.Host
}
