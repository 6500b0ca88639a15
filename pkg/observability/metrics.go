package observability

import (
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. PrometheusMetrics backs it in the
// services, InMemoryMetrics in tests.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is one metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a new Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// series holds every kind of sample recorded under one key.
type series struct {
	counter int64
	gauge   float64
	samples []float64
	timings []time.Duration
}

// InMemoryMetrics keeps samples in memory so tests can assert on them.
type InMemoryMetrics struct {
	mu     sync.RWMutex
	series map[string]*series
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: make(map[string]*series)}
}

// at requires mu held for writing.
func (m *InMemoryMetrics) at(name string, tags []Tag) *series {
	key := formatKey(name, tags)
	s, ok := m.series[key]
	if !ok {
		s = &series{}
		m.series[key] = s
	}
	return s
}

func (m *InMemoryMetrics) read(name string, tags []Tag) series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.series[formatKey(name, tags)]; ok {
		return *s
	}
	return series{}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at(name, tags).counter += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at(name, tags).gauge = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.at(name, tags)
	s.samples = append(s.samples, value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.at(name, tags)
	s.timings = append(s.timings, duration)
}

// GetCounter returns the current value of a counter.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	return m.read(name, tags).counter
}

// GetGauge returns the last value set on a gauge.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	return m.read(name, tags).gauge
}

// GetHistogram returns all recorded values for a histogram.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	return m.read(name, tags).samples
}

// GetTimings returns all recorded timings.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	return m.read(name, tags).timings
}

// Reset clears all recorded metrics.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = make(map[string]*series)
}

// formatKey renders name:k=v:k=v in tag order.
func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for _, t := range tags {
		b.WriteByte(':')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}

// Metric names recorded by the entitlement services.
const (
	MetricOperationTotal    = "vyora.operation.total"
	MetricOperationDuration = "vyora.operation.duration"
	MetricOperationErrors   = "vyora.operation.errors"

	MetricEvaluations = "vyora.entitlement.evaluations"
	MetricDenials     = "vyora.entitlement.denials"

	MetricSubscriptionFetches       = "vyora.subscription.fetches"
	MetricSubscriptionFetchErrors   = "vyora.subscription.fetch_errors"
	MetricSubscriptionFetchDuration = "vyora.subscription.fetch_duration"

	MetricBreakerTransitions = "vyora.billing.breaker_transitions"

	MetricEventsPublished = "vyora.events.published"
	MetricEventsConsumed  = "vyora.events.consumed"

	MetricOutboxPublished    = "vyora.outbox.published"
	MetricOutboxFailed       = "vyora.outbox.failed"
	MetricOutboxDeadLettered = "vyora.outbox.dead_lettered"
	MetricOutboxLag          = "vyora.outbox.lag_seconds"
)
