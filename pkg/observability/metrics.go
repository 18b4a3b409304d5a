package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors updated by the lifecycle hooks.
type Metrics struct {
	transitions  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_workflow_transitions_total",
				Help: "Total number of workflow status transitions, by target status",
			},
			[]string{"status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_step_duration_seconds",
				Help:    "Duration of action handler executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action", "status"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_decisions_total",
				Help: "Total number of rule evaluations, by outcome",
			},
			[]string{"outcome"},
		),
		gatherer: prometheus.DefaultGatherer,
	}
	reg.MustRegister(m.transitions, m.stepDuration, m.decisions)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnWorkflowStatus: func(ctx context.Context, e *domain.WorkflowEvent) {
			m.transitions.WithLabelValues(string(e.To)).Inc()
		},
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			m.stepDuration.WithLabelValues(e.Action, string(e.Status)).Observe(e.Duration.Seconds())
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			outcome := "matched"
			if e.Matched == 0 {
				outcome = domain.DecisionNoMatch
			}
			m.decisions.WithLabelValues(outcome).Inc()
		},
	}
}

// Handler serves the metrics of the registry m was created with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
