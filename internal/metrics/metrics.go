package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fuzzbridge",
			Name:      "runs_total",
			Help:      "Harness runs by verdict (clean, vulnerability, signal, abnormal, tooling).",
		}, []string{"verdict"},
	)
	inputBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fuzzbridge",
			Subsystem: "input",
			Name:      "bytes",
			Help:      "Size of the payload handed to the target.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
	)
	inputTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fuzzbridge",
			Subsystem: "input",
			Name:      "truncated_total",
			Help:      "Inputs cut down to the capacity limit.",
		},
	)
	targetDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fuzzbridge",
			Subsystem: "target",
			Name:      "duration_seconds",
			Help:      "Wall time from target start to its termination.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	targetSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fuzzbridge",
			Subsystem: "target",
			Name:      "signals_total",
			Help:      "Targets terminated by a signal, by signal name.",
		}, []string{"signal"},
	)
	targetPeakRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fuzzbridge",
			Subsystem: "target",
			Name:      "peak_rss_bytes",
			Help:      "Highest resident set size sampled for the last target.",
		},
	)
	targetCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fuzzbridge",
			Subsystem: "target",
			Name:      "cpu_seconds",
			Help:      "User plus system CPU time sampled for the last target.",
		},
	)
	lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fuzzbridge",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{runs, inputBytes, inputTruncated, targetDuration, targetSignals, targetPeakRSS, targetCPU, lastRun}
}

// Register registers all metrics with the provided registerer.
// Registering twice with the same registerer is not an error.
func Register(r prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Run is what a finished harness run reports.
type Run struct {
	Verdict     string
	PayloadSize int
	Truncated   bool
	Spawned     bool
	Duration    time.Duration
	Signal      string // empty unless the target was signaled
	Usage       Usage
}

// ObserveRun records one run. It no-ops if Register hasn't been called.
func ObserveRun(r Run) {
	if !regOK.Load() {
		return
	}
	runs.WithLabelValues(r.Verdict).Inc()
	lastRun.SetToCurrentTime()
	if r.PayloadSize > 0 {
		inputBytes.Observe(float64(r.PayloadSize))
	}
	if r.Truncated {
		inputTruncated.Inc()
	}
	if !r.Spawned {
		return
	}
	targetDuration.Observe(r.Duration.Seconds())
	if r.Signal != "" {
		targetSignals.WithLabelValues(r.Signal).Inc()
	}
	if r.Usage.Samples > 0 {
		targetPeakRSS.Set(float64(r.Usage.PeakRSS))
		targetCPU.Set(r.Usage.CPUSeconds)
	}
}
