// Package metrics records progress figures for benchmark runs and
// long-running scale jobs.
package metrics

import "time"

// Collector receives the counters, gauges, and timings the runner and
// scaler emit. Labels come in alternating key/value pairs.
type Collector interface {
	// IncrementCounter adds one to a monotonic counter, such as the
	// number of batches inserted.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram records one observation, such as a statement
	// duration in seconds.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge sets a point-in-time value, such as the current
	// row count of the table being grown.
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer begins timing a named phase. Stopping the timer
	// records its duration.
	StartTimer(name string) Timer
}

// Timer measures one phase of work.
type Timer interface {
	Stop() time.Duration
}

// NewNoOpCollector returns a collector that discards everything.
// Timers still measure, so callers can rely on Stop's return value.
func NewNoOpCollector() Collector {
	return nopCollector{}
}

type nopCollector struct{}

func (nopCollector) IncrementCounter(string, ...string)         {}
func (nopCollector) RecordHistogram(string, float64, ...string) {}
func (nopCollector) RecordGauge(string, float64, ...string)     {}

func (nopCollector) StartTimer(string) Timer {
	return nopTimer{start: time.Now()}
}

type nopTimer struct {
	start time.Time
}

func (t nopTimer) Stop() time.Duration {
	return time.Since(t.start)
}
