package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	trialsProposed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hyperopt",
			Subsystem: "trials",
			Name:      "proposed_total",
			Help:      "Number of trials returned by search strategies and inserted into the store.",
		},
	)
	trialsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hyperopt",
			Subsystem: "trials",
			Name:      "finished_total",
			Help:      "Number of evaluated trials by terminal state.",
		}, []string{"state"},
	)
	trialsAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hyperopt",
			Subsystem: "trials",
			Name:      "abandoned_total",
			Help:      "Number of trials left in state new when a run stopped.",
		},
	)
	evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hyperopt",
			Subsystem: "trials",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time spent in the objective per trial.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"},
	)
	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hyperopt",
			Subsystem: "runner",
			Name:      "queue_length",
			Help:      "Trials currently waiting in state new.",
		},
	)
	bestLoss = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hyperopt",
			Subsystem: "runner",
			Name:      "best_loss",
			Help:      "Lowest loss observed by the current run.",
		},
	)
	runsStopped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hyperopt",
			Subsystem: "runner",
			Name:      "stops_total",
			Help:      "Number of runs ended before their budget, by reason.",
		}, []string{"reason"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{trialsProposed, trialsFinished, trialsAbandoned, evaluationDuration, queueLength, bestLoss, runsStopped}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// already registered with this registerer: keep the existing one
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by the runner to record metrics.
// They no-op if Register hasn't been called.

func AddProposed(n int) {
	if regOK.Load() {
		trialsProposed.Add(float64(n))
	}
}

func ObserveFinished(state string, seconds float64) {
	if regOK.Load() {
		trialsFinished.WithLabelValues(state).Inc()
		evaluationDuration.WithLabelValues(state).Observe(seconds)
	}
}

func AddAbandoned(n int) {
	if regOK.Load() {
		trialsAbandoned.Add(float64(n))
	}
}

func SetQueueLength(n int) {
	if regOK.Load() {
		queueLength.Set(float64(n))
	}
}

func SetBestLoss(v float64) {
	if regOK.Load() {
		bestLoss.Set(v)
	}
}

func IncStopped(reason string) {
	if regOK.Load() {
		runsStopped.WithLabelValues(reason).Inc()
	}
}
