package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.Counter(MetricEvaluations, 1, T("action", "post"))
		m.Gauge(MetricOutboxLag, 1.5)
		m.Histogram("sizes", 42)
		m.Timing(MetricSubscriptionFetchDuration, time.Second)
	})
}

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()
	post := T("action", "post")

	m.Counter(MetricDenials, 1, post)
	m.Counter(MetricDenials, 2, post)
	m.Counter(MetricDenials, 1, T("action", "comment"))
	m.Gauge(MetricOutboxLag, 3)
	m.Gauge(MetricOutboxLag, 1)
	m.Histogram("batch", 10)
	m.Histogram("batch", 20)
	m.Timing(MetricSubscriptionFetchDuration, 5*time.Millisecond)

	assert.Equal(t, int64(3), m.GetCounter(MetricDenials, post))
	assert.Equal(t, int64(1), m.GetCounter(MetricDenials, T("action", "comment")))
	assert.Zero(t, m.GetCounter(MetricDenials), "untagged series is separate")
	assert.Equal(t, 1.0, m.GetGauge(MetricOutboxLag))
	assert.Equal(t, []float64{10, 20}, m.GetHistogram("batch"))
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, m.GetTimings(MetricSubscriptionFetchDuration))

	m.Reset()
	assert.Zero(t, m.GetCounter(MetricDenials, post))
	assert.Empty(t, m.GetHistogram("batch"))
}

func TestInMemoryMetrics_Concurrent(t *testing.T) {
	m := NewInMemoryMetrics()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Counter(MetricEvaluations, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.GetCounter(MetricEvaluations))
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "requests", formatKey("requests", nil))
	assert.Equal(t, "requests:method=GET:status=200",
		formatKey("requests", []Tag{T("method", "GET"), T("status", "200")}))
}
