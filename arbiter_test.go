package arbiter_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/arbiter"
	"github.com/aretw0/arbiter/pkg/adapters/memory"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/dsl"
	"github.com/aretw0/arbiter/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Defaults(t *testing.T) {
	arb, err := arbiter.New()
	require.NoError(t, err)
	defer arb.Close()

	names := arb.Registry().Names()
	assert.Contains(t, names, "verify_content")
	assert.Contains(t, names, "create_ruv_profile")
	assert.Contains(t, names, "make_decision")
	assert.Contains(t, names, "store_data")
	assert.Contains(t, names, "transform_data")
	assert.Contains(t, names, "call_api")
	assert.Contains(t, names, "wait")
	assert.NotNil(t, arb.Store())
}

func TestNew_WithoutBuiltins(t *testing.T) {
	arb, err := arbiter.New(arbiter.WithoutBuiltins())
	require.NoError(t, err)
	defer arb.Close()

	assert.Empty(t, arb.Registry().Names())
}

func TestRun_VerificationPipeline(t *testing.T) {
	store := memory.NewStore()
	arb, err := arbiter.New(arbiter.WithStore(store))
	require.NoError(t, err)
	defer arb.Close()

	b := dsl.New()
	b.Add("verify").Do("verify_content").
		With("content", "Scientists published a peer-reviewed study on coastal erosion.").
		With("content_type", "text/plain")
	b.Add("profile").Do("create_ruv_profile").With("entity_id", "source-42")
	b.Add("decide").Do("make_decision").With("rules", []any{
		map[string]any{"name": "publish", "condition": "verify.authentic == true", "action": "publish", "priority": 10},
		map[string]any{"name": "default", "condition": "true", "action": "hold", "priority": 0},
	})

	ctx := context.Background()
	res, err := arb.Run(ctx, "agent-1", "moderation", domain.WorkflowConfig{}, b.MustBuild())
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.StepsExecuted)

	verified := res.Context["verify"].(map[string]any)
	profile := res.Context["profile"].(map[string]any)
	assert.Equal(t, verified["confidence"], profile["reputation"])
	assert.Equal(t, 1, profile["verifications"])

	decided := res.Context["decide"].(map[string]any)
	if verified["authentic"] == true {
		assert.Equal(t, "publish", decided["recommended_action"])
	} else {
		assert.Equal(t, "hold", decided["recommended_action"])
	}

	profiles, err := store.SearchMemories(ctx, "agent-1", "ruv_profile:source-42")
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	decisions, err := store.SearchMemories(ctx, "agent-1", "decision:")
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestRun_UnknownAction(t *testing.T) {
	arb, err := arbiter.New()
	require.NoError(t, err)
	defer arb.Close()

	_, err = arb.Run(context.Background(), "agent-1", "demo", domain.WorkflowConfig{}, []domain.StepDefinition{
		{Name: "x", Action: "teleport"},
	})
	assert.True(t, errors.Is(err, domain.ErrUnknownAction))
}

func TestNew_HooksAndMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	var mu sync.Mutex
	var statuses []domain.WorkflowStatus
	decisions := 0
	hooks := domain.LifecycleHooks{
		OnWorkflowStatus: func(_ context.Context, e *domain.WorkflowEvent) {
			mu.Lock()
			statuses = append(statuses, e.To)
			mu.Unlock()
		},
		OnDecision: func(context.Context, *domain.DecisionEvent) {
			mu.Lock()
			decisions++
			mu.Unlock()
		},
	}

	arb, err := arbiter.New(
		arbiter.WithLifecycleHooks(hooks),
		arbiter.WithStoreMiddleware(middleware.NewLoggingMiddleware(zap.New(core))),
	)
	require.NoError(t, err)
	defer arb.Close()

	ctx := context.Background()
	steps := dsl.New()
	steps.Add("decide").Do("make_decision").With("rules", []any{
		map[string]any{"name": "go", "condition": "true", "action": "go", "priority": 1},
	})
	res, err := arb.Run(ctx, "agent-1", "demo", domain.WorkflowConfig{}, steps.MustBuild())
	require.NoError(t, err)
	require.True(t, res.Success)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.WorkflowStatus{
		domain.StatusInitialized, domain.StatusReady, domain.StatusRunning, domain.StatusCompleted,
	}, statuses)
	assert.Equal(t, 1, decisions)
	assert.NotZero(t, logs.FilterField(zap.String("op", "StoreMemory")).Len())
}

func TestArbiter_SharedStore(t *testing.T) {
	store := memory.NewStore()
	first, err := arbiter.New(arbiter.WithStore(store))
	require.NoError(t, err)
	defer first.Close()
	second, err := arbiter.New(arbiter.WithStore(store))
	require.NoError(t, err)
	defer second.Close()

	ctx := context.Background()
	current := map[string]any{"verified": false}
	goal := map[string]any{"verified": true}
	available := []domain.Action{{Name: "verify", Effects: map[string]any{"verified": true}}}

	plan, err := first.PlanActions(ctx, "agent-1", current, goal, available)
	require.NoError(t, err)
	require.True(t, plan.Success)

	past, err := second.Store().SearchMemories(ctx, "agent-1", "plan:success")
	require.NoError(t, err)
	assert.Len(t, past, 1)
}
