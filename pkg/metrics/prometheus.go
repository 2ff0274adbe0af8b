package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// PrometheusCollector implements Collector using Prometheus metrics.
// Metrics register lazily on first use against a collector-owned
// registry so two collectors in one process never collide.
type PrometheusCollector struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	namespace  string
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		namespace:  namespace,
	}
}

// Registry returns the underlying registry for serving.
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// IncrementCounter increments a counter metric.
func (p *PrometheusCollector) IncrementCounter(name string, labels ...string) {
	p.counterVec(name, labelNames(labels)).WithLabelValues(labelValues(labels)...).Inc()
}

// RecordHistogram records a value in a histogram metric.
func (p *PrometheusCollector) RecordHistogram(name string, value float64, labels ...string) {
	p.histogramVec(name, labelNames(labels)).WithLabelValues(labelValues(labels)...).Observe(value)
}

// RecordGauge records a gauge metric value.
func (p *PrometheusCollector) RecordGauge(name string, value float64, labels ...string) {
	p.gaugeVec(name, labelNames(labels)).WithLabelValues(labelValues(labels)...).Set(value)
}

// StartTimer starts a timer that records its duration as a histogram.
func (p *PrometheusCollector) StartTimer(name string) Timer {
	return &prometheusTimer{
		collector: p,
		name:      name,
		start:     time.Now(),
	}
}

func (p *PrometheusCollector) counterVec(name string, names []string) *prometheus.CounterVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Counter metric: %s", name),
	}, names)
	p.registry.MustRegister(vec)
	p.counters[name] = vec
	return vec
}

func (p *PrometheusCollector) histogramVec(name string, names []string) *prometheus.HistogramVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Histogram metric: %s", name),
		Buckets:   prometheus.DefBuckets,
	}, names)
	p.registry.MustRegister(vec)
	p.histograms[name] = vec
	return vec
}

func (p *PrometheusCollector) gaugeVec(name string, names []string) *prometheus.GaugeVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.gauges[name]; ok {
		return vec
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Gauge metric: %s", name),
	}, names)
	p.registry.MustRegister(vec)
	p.gauges[name] = vec
	return vec
}

// labelNames extracts the even-indexed entries of a key/value label list.
func labelNames(labels []string) []string {
	names := make([]string, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		names = append(names, labels[i])
	}
	return names
}

// labelValues extracts the odd-indexed entries of a key/value label list.
func labelValues(labels []string) []string {
	values := make([]string, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		values = append(values, labels[i+1])
	}
	return values
}

// prometheusTimer implements Timer using Prometheus.
type prometheusTimer struct {
	collector *PrometheusCollector
	name      string
	start     time.Time
}

// Stop stops the timer and records the duration.
func (t *prometheusTimer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.collector.RecordHistogram(t.name+"_duration_seconds", elapsed.Seconds())
	return elapsed
}

// Server exposes a Prometheus collector over HTTP.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a metrics HTTP server for the given collector.
func NewServer(addr string, collector *PrometheusCollector, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start begins serving metrics in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("Metrics server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server terminated")
		}
	}()
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
