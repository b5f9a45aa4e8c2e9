// Package metrics holds the Prometheus collectors for session reconstruction.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cheese_session"

var (
	// Labels: outcome (ok, rejected, unreachable, validation, error)
	replayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "replay",
		Name:      "runs_total",
		Help:      "Replays of a move history onto a fresh remote game",
	}, []string{"outcome"})

	replayPlies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "replay",
		Name:      "plies_total",
		Help:      "Plies accepted by the authority during replays",
	})

	replayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "replay",
		Name:      "duration_seconds",
		Help:      "Wall time of a full replay",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Labels: result (ok, busy, disabled, fresh, error)
	undoTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "undo",
		Name:      "requests_total",
		Help:      "Undo requests by result",
	}, []string{"result"})

	// Labels: op (save, load, delete, autosave, restore, prefs), result (ok, miss, corrupt, error)
	snapshotOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "operations_total",
		Help:      "Snapshot store operations by result",
	}, []string{"op", "result"})

	feedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "clients",
		Help:      "Connected projection feed clients",
	})
)

func ObserveReplay(outcome string, plies int, elapsed time.Duration) {
	replayTotal.WithLabelValues(outcome).Inc()
	if plies > 0 {
		replayPlies.Add(float64(plies))
	}
	replayDuration.Observe(elapsed.Seconds())
}

func ObserveUndo(result string) {
	undoTotal.WithLabelValues(result).Inc()
}

func ObserveSnapshot(op, result string) {
	snapshotOps.WithLabelValues(op, result).Inc()
}

func FeedClientDelta(d int) {
	feedClients.Add(float64(d))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
