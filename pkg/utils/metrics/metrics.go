// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ulog "github.com/elastic/edge-credentials/pkg/utils/log"
)

const (
	namespace = "nuvlaedge"
	subsystem = "credentials"

	StateLabel   = "state"
	OutcomeLabel = "outcome"

	OutcomeReused = "reused"
	OutcomeIssued = "issued"
	OutcomeFailed = "failed"
)

var (
	// Registry holds every collector of this package.
	Registry = prometheus.NewRegistry()

	// TransitionsTotal counts lifecycle state transitions by target state.
	TransitionsTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "state_transitions_total",
		Help:      "Number of credential lifecycle state transitions",
	}, []string{StateLabel}))

	// RunsTotal counts finished lifecycle runs by outcome.
	RunsTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "runs_total",
		Help:      "Number of credential lifecycle runs by outcome",
	}, []string{OutcomeLabel}))

	// ApprovalWaitSeconds observes how long certificate signing requests waited for a terminal status.
	ApprovalWaitSeconds = registerHistogram(prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "approval_wait_seconds",
		Help:      "Time spent waiting for certificate signing request approval",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	}))
)

func registerCounterVec(counter *prometheus.CounterVec) *prometheus.CounterVec {
	err := Registry.Register(counter)
	if err != nil {
		if existsErr, ok := err.(prometheus.AlreadyRegisteredError); ok { //nolint:errorlint
			return existsErr.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(fmt.Sprintf("Failed to register counter: %v", err))
	}
	return counter
}

func registerHistogram(histogram prometheus.Histogram) prometheus.Histogram {
	err := Registry.Register(histogram)
	if err != nil {
		if existsErr, ok := err.(prometheus.AlreadyRegisteredError); ok { //nolint:errorlint
			return existsErr.ExistingCollector.(prometheus.Histogram)
		}
		panic(fmt.Sprintf("Failed to register histogram: %v", err))
	}
	return histogram
}

// Handler exposes the collectors of Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler on /metrics at the given port until ctx is done.
func Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			ulog.Log.WithName("metrics").Error(err, "Error while shutting down metrics server")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "while serving metrics on port %d", port)
	}
	return nil
}
