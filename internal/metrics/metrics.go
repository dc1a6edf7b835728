// Package metrics holds the Prometheus collectors of the library service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bookstore/services/library/internal/repo"
)

const namespace = "library"

// Outcome labels for borrow and return counters
const (
	OutcomeSuccess = "success"
)

// Metrics groups the service collectors
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	borrows             *prometheus.CounterVec
	returns             *prometheus.CounterVec
	invariantViolations prometheus.Counter
	eventsPublished     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		borrows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrows_total",
			Help:      "Borrow attempts by outcome (success or error kind).",
		}, []string{"outcome"}),
		returns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_total",
			Help:      "Return attempts by outcome (success or error kind).",
		}, []string{"outcome"}),
		invariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Detected breaks of the copy accounting.",
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker by type and result.",
		}, []string{"event_type", "result"}),
	}
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Borrowed records a borrow outcome
func (m *Metrics) Borrowed(outcome string) {
	if m == nil {
		return
	}
	m.borrows.WithLabelValues(outcome).Inc()
}

// Returned records a return outcome
func (m *Metrics) Returned(outcome string) {
	if m == nil {
		return
	}
	m.returns.WithLabelValues(outcome).Inc()
}

// InvariantViolated records a detected accounting break
func (m *Metrics) InvariantViolated() {
	if m == nil {
		return
	}
	m.invariantViolations.Inc()
}

// EventPublished records a publish attempt
func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

// StatsSource reports the dashboard counters
type StatsSource interface {
	GetStats(ctx context.Context) (repo.Stats, error)
}

// statsCollector reads the catalog counters from the store on every scrape,
// so the exported gauges can never drift from the loan table.
type statsCollector struct {
	source      StatsSource
	books       *prometheus.Desc
	members     *prometheus.Desc
	activeLoans *prometheus.Desc
	up          *prometheus.Desc
}

// NewStatsCollector exposes books, members and active loans as gauges
func NewStatsCollector(source StatsSource) prometheus.Collector {
	return &statsCollector{
		source:      source,
		books:       prometheus.NewDesc(namespace+"_books", "Books in the catalog.", nil, nil),
		members:     prometheus.NewDesc(namespace+"_members", "Registered members.", nil, nil),
		activeLoans: prometheus.NewDesc(namespace+"_active_loans", "Loans not yet returned.", nil, nil),
		up:          prometheus.NewDesc(namespace+"_stats_up", "Whether the last stats query succeeded.", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.books
	ch <- c.members
	ch <- c.activeLoans
	ch <- c.up
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := c.source.GetStats(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.books, prometheus.GaugeValue, float64(stats.Books))
	ch <- prometheus.MustNewConstMetric(c.members, prometheus.GaugeValue, float64(stats.Members))
	ch <- prometheus.MustNewConstMetric(c.activeLoans, prometheus.GaugeValue, float64(stats.ActiveLoans))
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
}
