package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters and gauges for engine operations.
type Metrics interface {
	IncStores(layer string)
	IncDuplicates(layer string)
	IncEvictions(layer, reason string)
	IncFailures(op string)
	ObserveStoreBytes(layer string, size float64)
	SetLayerUsage(layer string, files int, bytes int64)
}

// SweepMetrics captures retention sweep activity.
type SweepMetrics interface {
	IncSweepRuns(layer, outcome string)
	ObserveSweepDuration(layer string, durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncStores(string)                  {}
func (Noop) IncDuplicates(string)              {}
func (Noop) IncEvictions(string, string)       {}
func (Noop) IncFailures(string)                {}
func (Noop) ObserveStoreBytes(string, float64) {}
func (Noop) SetLayerUsage(string, int, int64)  {}

// NoopSweep implements SweepMetrics without emitting anything.
type NoopSweep struct{}

func (NoopSweep) IncSweepRuns(string, string)          {}
func (NoopSweep) ObserveSweepDuration(string, float64) {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	stores     *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	evictions  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	storeBytes *prometheus.HistogramVec
	layerFiles *prometheus.GaugeVec
	layerBytes *prometheus.GaugeVec
	once       sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		stores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stores_total",
			Help:      "Files stored by layer",
		}, []string{"layer"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_hits_total",
			Help:      "Stores short-circuited by content dedup per layer",
		}, []string{"layer"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Files evicted by layer and reason",
		}, []string{"layer", "reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Failed engine operations by type",
		}, []string{"operation"}),
		storeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_bytes",
			Help:      "Logical payload sizes of stored files by layer",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"layer"}),
		layerFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layer_files",
			Help:      "Files currently held per layer",
		}, []string{"layer"}),
		layerBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layer_bytes",
			Help:      "Logical bytes currently held per layer",
		}, []string{"layer"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.stores, p.duplicates, p.evictions, p.failures, p.storeBytes, p.layerFiles, p.layerBytes)
	})
}

func (p *Prom) IncStores(layer string) {
	p.stores.WithLabelValues(layer).Inc()
}

func (p *Prom) IncDuplicates(layer string) {
	p.duplicates.WithLabelValues(layer).Inc()
}

func (p *Prom) IncEvictions(layer, reason string) {
	p.evictions.WithLabelValues(layer, reason).Inc()
}

func (p *Prom) IncFailures(op string) {
	p.failures.WithLabelValues(op).Inc()
}

func (p *Prom) ObserveStoreBytes(layer string, size float64) {
	p.storeBytes.WithLabelValues(layer).Observe(size)
}

func (p *Prom) SetLayerUsage(layer string, files int, bytes int64) {
	p.layerFiles.WithLabelValues(layer).Set(float64(files))
	p.layerBytes.WithLabelValues(layer).Set(float64(bytes))
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Sweep metrics ---

type sweepProm struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	once     sync.Once
}

// NewSweepProm constructs SweepMetrics with counters and histograms.
func NewSweepProm(namespace string) SweepMetrics {
	s := &sweepProm{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Retention sweep executions by layer and outcome",
		}, []string{"layer", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Retention sweep duration by layer",
			Buckets:   prometheus.DefBuckets,
		}, []string{"layer"}),
	}
	s.once.Do(func() {
		prometheus.MustRegister(s.runs, s.duration)
	})
	return s
}

func (s *sweepProm) IncSweepRuns(layer, outcome string) {
	s.runs.WithLabelValues(layer, outcome).Inc()
}

func (s *sweepProm) ObserveSweepDuration(layer string, durationSeconds float64) {
	s.duration.WithLabelValues(layer).Observe(durationSeconds)
}
