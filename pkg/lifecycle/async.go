// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package lifecycle

import (
	"context"

	"github.com/pkg/errors"
)

// Outcome is the result of an asynchronous run.
type Outcome struct {
	Result *Result
	Err    error
}

// RunAsync runs Run on its own goroutine. The returned channel receives exactly one Outcome.
// If ctx is done before the run returns, ErrCancelled is delivered without waiting for it.
func (m *Manager) RunAsync(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)
	done := make(chan Outcome, 1)

	go func() {
		result, err := m.Run(ctx)
		done <- Outcome{Result: result, Err: err}
	}()

	go func() {
		out <- await(ctx, done)
	}()
	return out
}

// await returns the run outcome, or ErrCancelled if ctx is done first.
// An outcome already available wins over a simultaneous cancellation.
func await(ctx context.Context, done <-chan Outcome) Outcome {
	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		select {
		case o := <-done:
			return o
		default:
			return Outcome{Err: errors.Wrap(ErrCancelled, ctx.Err().Error())}
		}
	}
}
