// Package metrics exposes turn and handoff counters through Prometheus.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/caregraph/internal/logging"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple engines never collide.
type Metrics struct {
	registry *prometheus.Registry

	turns    *prometheus.CounterVec
	handoffs *prometheus.CounterVec
	duration *prometheus.HistogramVec
	threads  prometheus.Counter
}

// New creates the collectors and registers them with the process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caregraph_turns_total",
				Help: "Total number of turns by answering responder and outcome",
			},
			[]string{"responder", "outcome"},
		),
		handoffs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caregraph_handoffs_total",
				Help: "Total number of applied responder transitions",
			},
			[]string{"from", "to", "via_hub"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caregraph_turn_duration_seconds",
				Help:    "Duration of turns, reasoning included",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"responder"},
		),
		threads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caregraph_threads_created_total",
			Help: "Total number of threads created",
		}),
	}
	m.registry.MustRegister(
		m.turns, m.handoffs, m.duration, m.threads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record metrics and log each transition.
// A nil logger disables the logs.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			if e.NewThread {
				m.threads.Inc()
			}
		},
		OnHandoff: func(ctx context.Context, e *domain.HandoffEvent) {
			m.handoffs.WithLabelValues(e.From.String(), e.To.String(), strconv.FormatBool(e.ViaHub)).Inc()
			logger.DebugContext(ctx, "Transition",
				"from", e.From,
				"to", e.To,
				"label", e.Label,
				"via_hub", e.ViaHub,
			)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.turns.WithLabelValues(e.Responder.String(), outcome).Inc()
			m.duration.WithLabelValues(e.Responder.String()).Observe(e.Duration.Seconds())
			logger.DebugContext(ctx, "Turn finished",
				"intent", e.Intent,
				"outcome", outcome,
				"duration", e.Duration,
			)
		},
	}
}
