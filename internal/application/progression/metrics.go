package progression

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alem-hub/guild-leveling/internal/domain/shared"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	levelUps   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Labels: operation, result (ok, invalid, not_ready, insufficient_balance, not_found, error)
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leveling",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome",
		}, []string{"operation", "result"}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leveling",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency including store round trips",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		levelUps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leveling",
			Subsystem: "engine",
			Name:      "level_ups_total",
			Help:      "Level transitions applied after XP additions",
		}),
	}
}

func (m *Metrics) observe(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) levelUp() {
	if m == nil {
		return
	}
	m.levelUps.Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrNotReady):
		return "not_ready"
	case errors.Is(err, shared.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, shared.ErrStore):
		return "error"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
