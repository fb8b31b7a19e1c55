package presence

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rpchub",
		Name:      "sessions_active",
		Help:      "Number of live presence sessions held by the registry.",
	})

	activationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpchub",
		Name:      "activations_total",
		Help:      "Activation attempts grouped by result.",
	}, []string{"result"})

	probeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpchub",
		Name:      "probes_total",
		Help:      "Reconciliation liveness probes grouped by result.",
	}, []string{"result"})

	reconnectCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpchub",
		Name:      "reconnects_total",
		Help:      "Reactivations after a failed probe grouped by result.",
	}, []string{"result"})

	restoreCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpchub",
		Name:      "restores_total",
		Help:      "Restore-on-start activations grouped by result.",
	}, []string{"result"})

	tickHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rpchub",
		Name:      "reconcile_tick_seconds",
		Help:      "Duration of a reconciliation tick.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(sessionsActiveGauge, activationCounter, probeCounter, reconnectCounter, restoreCounter, tickHistogram)
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
