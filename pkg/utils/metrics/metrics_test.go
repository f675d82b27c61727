// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsTotal(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues(OutcomeIssued))
	RunsTotal.WithLabelValues(OutcomeIssued).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues(OutcomeIssued)))
}

func Test_registerCounterVec_alreadyRegistered(t *testing.T) {
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "runs_total",
		Help:      "Number of credential lifecycle runs by outcome",
	}, []string{OutcomeLabel})
	// the existing collector is returned instead of panicking
	assert.Same(t, RunsTotal, registerCounterVec(duplicate))
}

func TestHandler(t *testing.T) {
	TransitionsTotal.WithLabelValues("Done").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nuvlaedge_credentials_state_transitions_total{state="Done"}`)
}
