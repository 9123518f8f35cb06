// Package metrics exports deployment run progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Bidon15/autodeploy/internal/orchestrator"
	"github.com/Bidon15/autodeploy/internal/registry"
)

const namespace = "autodeploy"

// Recorder is an orchestrator.Observer that updates Prometheus collectors.
type Recorder struct {
	attempts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	activePairs prometheus.Gauge
	round       prometheus.Gauge
}

var _ orchestrator.Observer = (*Recorder)(nil)

// NewRecorder registers the run collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Deployment attempts by network and outcome.",
		}, []string{"network", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deploy_duration_seconds",
			Help:      "Time from submission to confirmed deployment or failure.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"network"}),
		activePairs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pairs",
			Help:      "Network and credential pairs still deploying.",
		}),
		round: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round",
			Help:      "Current round number.",
		}),
	}
}

// RoundStarted implements orchestrator.Observer.
func (r *Recorder) RoundStarted(round int, active registry.RoundState) {
	r.round.Set(float64(round))
	r.activePairs.Set(float64(active.Len()))
}

// AttemptFinished implements orchestrator.Observer.
func (r *Recorder) AttemptFinished(a orchestrator.Attempt) {
	network := a.Pair.Network.Name
	r.attempts.WithLabelValues(network, a.Outcome.String()).Inc()
	r.duration.WithLabelValues(network).Observe(a.Duration.Seconds())
}

// RoundFinished implements orchestrator.Observer.
func (r *Recorder) RoundFinished(_ int, survivors registry.RoundState) {
	r.activePairs.Set(float64(survivors.Len()))
}
