package observability

import "time"

// MetricSet names the series one measured call writes to.
type MetricSet struct {
	Count    string
	Errors   string
	Duration string
}

var (
	// SubscriptionFetchMetrics covers store refreshes.
	SubscriptionFetchMetrics = MetricSet{
		Count:    MetricSubscriptionFetches,
		Errors:   MetricSubscriptionFetchErrors,
		Duration: MetricSubscriptionFetchDuration,
	}
	// OperationMetrics covers single outbound calls such as one billing
	// API attempt.
	OperationMetrics = MetricSet{
		Count:    MetricOperationTotal,
		Errors:   MetricOperationErrors,
		Duration: MetricOperationDuration,
	}
)

// Stopwatch measures one call.
type Stopwatch struct {
	metrics Metrics
	set     MetricSet
	tags    []Tag
	start   time.Time
}

// StartStopwatch begins measuring. A nil metrics discards the result.
func StartStopwatch(metrics Metrics, set MetricSet, tags ...Tag) *Stopwatch {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Stopwatch{metrics: metrics, set: set, tags: tags, start: time.Now()}
}

// Stop records the duration and the call count, plus an error count
// when err is non-nil. The outcome tag is added to the duration only so
// counters keep their own label set.
func (s *Stopwatch) Stop(err error) time.Duration {
	elapsed := time.Since(s.start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.metrics.Counter(s.set.Errors, 1, s.tags...)
	}
	s.metrics.Counter(s.set.Count, 1, s.tags...)
	s.metrics.Timing(s.set.Duration, elapsed, append(append([]Tag(nil), s.tags...), T("outcome", outcome))...)
	return elapsed
}
