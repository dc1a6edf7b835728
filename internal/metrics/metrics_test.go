package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstore/services/library/internal/repo"
)

type fakeStats struct {
	stats repo.Stats
	err   error
}

func (f fakeStats) GetStats(context.Context) (repo.Stats, error) {
	return f.stats, f.err
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Borrowed(OutcomeSuccess)
	m.Borrowed(OutcomeSuccess)
	m.Borrowed("out_of_stock")
	m.Returned("conflict")
	m.InvariantViolated()
	m.EventPublished("loan.borrowed", nil)
	m.EventPublished("loan.borrowed", errors.New("broker down"))
	m.ObserveHTTP("GET", "/books", "200", 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.borrows.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.borrows.WithLabelValues("out_of_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.returns.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invariantViolations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("loan.borrowed", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/books", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Borrowed(OutcomeSuccess)
		m.Returned(OutcomeSuccess)
		m.InvariantViolated()
		m.EventPublished("x", nil)
		m.ObserveHTTP("GET", "/", "200", time.Millisecond)
	})
}

func TestStatsCollector(t *testing.T) {
	collector := NewStatsCollector(fakeStats{stats: repo.Stats{Books: 4, Members: 2, ActiveLoans: 3}})

	expected := `
# HELP library_active_loans Loans not yet returned.
# TYPE library_active_loans gauge
library_active_loans 3
# HELP library_books Books in the catalog.
# TYPE library_books gauge
library_books 4
`
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "library_active_loans", "library_books")
	require.NoError(t, err)
}

func TestStatsCollectorReportsFailure(t *testing.T) {
	collector := NewStatsCollector(fakeStats{err: errors.New("db down")})

	expected := `
# HELP library_stats_up Whether the last stats query succeeded.
# TYPE library_stats_up gauge
library_stats_up 0
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "library_stats_up"))
}
