/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

// gatherSingle registers the collector in a fresh registry and returns its only metric.
func gatherSingle(t assert.TestingT, c prometheus.Collector) (*dto.Metric, bool) {
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(c)) {
		return nil, false
	}
	families, err := reg.Gather()
	if !assert.NoError(t, err) {
		return nil, false
	}
	if !assert.Len(t, families, 1) || !assert.Len(t, families[0].GetMetric(), 1) {
		return nil, false
	}
	return families[0].GetMetric()[0], true
}

// AssertCounterValue asserts that the counter has the given value.
func AssertCounterValue(t assert.TestingT, counter prometheus.Counter, want int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	m, ok := gatherSingle(t, counter)
	if !ok {
		return false
	}
	return assert.Equal(t, want, int(m.GetCounter().GetValue()))
}

// RequireCounterValue calls AssertCounterValue and fails the test immediately on mismatch.
func RequireCounterValue(t require.TestingT, counter prometheus.Counter, want int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertCounterValue(t, counter, want) {
		t.FailNow()
	}
}

// AssertGaugeValue asserts that the gauge has the given value.
func AssertGaugeValue(t assert.TestingT, gauge prometheus.Gauge, want int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	m, ok := gatherSingle(t, gauge)
	if !ok {
		return false
	}
	return assert.Equal(t, want, int(m.GetGauge().GetValue()))
}

// RequireGaugeValue calls AssertGaugeValue and fails the test immediately on mismatch.
func RequireGaugeValue(t require.TestingT, gauge prometheus.Gauge, want int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertGaugeValue(t, gauge, want) {
		t.FailNow()
	}
}

// RequireSamplesCountInHistogram checks the number of observations of the histogram.
func RequireSamplesCountInHistogram(t require.TestingT, hist prometheus.Histogram, want int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	m, ok := gatherSingle(t, hist)
	if !ok {
		t.FailNow()
		return
	}
	require.Equal(t, want, int(m.GetHistogram().GetSampleCount()))
}
