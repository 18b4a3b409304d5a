package observability_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnWorkflowStatus(ctx, &domain.WorkflowEvent{From: domain.StatusReady, To: domain.StatusRunning})
	hooks.OnWorkflowStatus(ctx, &domain.WorkflowEvent{From: domain.StatusRunning, To: domain.StatusCompleted})
	hooks.OnStepFinish(ctx, &domain.StepEvent{Action: "wait", Status: domain.StepCompleted, Duration: 20 * time.Millisecond})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Decision: "approve", Matched: 2})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Decision: domain.DecisionNoMatch})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `arbiter_workflow_transitions_total{status="running"} 1`)
	assert.Contains(t, out, `arbiter_workflow_transitions_total{status="completed"} 1`)
	assert.Contains(t, out, `arbiter_step_duration_seconds_count{action="wait",status="completed"} 1`)
	assert.Contains(t, out, `arbiter_decisions_total{outcome="matched"} 1`)
	assert.Contains(t, out, `arbiter_decisions_total{outcome="no_match"} 1`)
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)
	assert.Panics(t, func() { observability.NewMetrics(reg) })
}
