package actions_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbiter/pkg/actions"
	"github.com/aretw0/arbiter/pkg/adapters/memory"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/registry"
	"github.com/aretw0/arbiter/pkg/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecider struct {
	gotRules []domain.Rule
}

func (f *fakeDecider) MakeDecision(ctx context.Context, agentID string, wctx map[string]any, rules []domain.Rule) (*domain.Decision, error) {
	f.gotRules = rules
	return &domain.Decision{
		Decision:          rules[0].Action,
		RecommendedAction: rules[0].Action,
		SelectedRule:      &rules[0],
		Confidence:        0.9,
	}, nil
}

func setup(t *testing.T) (*registry.Registry, *memory.Store, *fakeDecider) {
	t.Helper()
	store := memory.NewStore()
	decider := &fakeDecider{}
	reg := registry.NewRegistry()
	actions.RegisterBuiltins(reg, actions.Deps{
		Store:    store,
		Verifier: verify.New(),
		Decider:  decider,
	})
	return reg, store, decider
}

func stepCtx() context.Context {
	return domain.WithStepInfo(context.Background(), domain.StepInfo{AgentID: "agent-1", WorkflowID: "wf-1", StepName: "s"})
}

func TestRegisterBuiltins(t *testing.T) {
	reg, _, _ := setup(t)
	assert.ElementsMatch(t, []string{
		"verify_content", "create_ruv_profile", "make_decision", "store_data",
		"transform_data", "call_api", "wait",
	}, reg.Names())
}

func TestVerifyContent(t *testing.T) {
	reg, _, _ := setup(t)

	out, err := reg.Execute(stepCtx(), actions.VerifyContent, nil, map[string]any{
		"content":      `{"source":"wire"}`,
		"content_type": "application/json",
	})
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, true, res["authentic"])
	assert.Contains(t, res, "confidence")
	assert.Contains(t, res["details"], "content_id")

	_, err = reg.Execute(stepCtx(), actions.VerifyContent, nil, map[string]any{})
	assert.Error(t, err)
}

func TestVerifyContent_NotConfigured(t *testing.T) {
	reg := registry.NewRegistry()
	actions.RegisterBuiltins(reg, actions.Deps{})
	_, err := reg.Execute(stepCtx(), actions.VerifyContent, nil, map[string]any{"content": "x"})
	assert.ErrorIs(t, err, actions.ErrNotConfigured)
}

func TestCreateRUVProfile(t *testing.T) {
	reg, store, _ := setup(t)
	wctx := map[string]any{
		"verify_a": map[string]any{"authentic": true, "confidence": 0.9},
		"verify_b": map[string]any{"authentic": false, "confidence": 0.5},
		"other":    map[string]any{"confidence": 0.1},
	}

	out, err := reg.Execute(stepCtx(), actions.CreateRUVProfile, wctx, map[string]any{"entity_id": "user-9"})
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.InDelta(t, 0.7, res["reputation"], 1e-9)
	assert.Equal(t, 2, res["verifications"])

	mems, err := store.SearchMemories(context.Background(), "agent-1", "ruv_profile:user-9")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, domain.MemoryLongTerm, mems[0].Type)

	out, err = reg.Execute(stepCtx(), actions.CreateRUVProfile, nil, map[string]any{"entity_id": "user-9", "reputation": "0.3"})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, out.(map[string]any)["reputation"], 1e-9)

	_, err = reg.Execute(context.Background(), actions.CreateRUVProfile, nil, map[string]any{"entity_id": "x"})
	assert.Error(t, err, "agent is required outside a workflow")
}

func TestMakeDecision_Condition(t *testing.T) {
	reg, _, _ := setup(t)
	wctx := map[string]any{"verify": map[string]any{"authentic": true}}

	out, err := reg.Execute(stepCtx(), actions.MakeDecision, wctx, map[string]any{"condition": "verify.authentic == true"})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]any)["decision"])

	// Evaluation failures are a non-match, not a step failure.
	out, err = reg.Execute(stepCtx(), actions.MakeDecision, wctx, map[string]any{"condition": "missing > 1"})
	require.NoError(t, err)
	assert.Equal(t, false, out.(map[string]any)["decision"])
	assert.Contains(t, out.(map[string]any), "error")

	_, err = reg.Execute(stepCtx(), actions.MakeDecision, wctx, map[string]any{})
	assert.Error(t, err)
}

func TestMakeDecision_Rules(t *testing.T) {
	reg, _, decider := setup(t)

	out, err := reg.Execute(stepCtx(), actions.MakeDecision, nil, map[string]any{
		"rules": []any{
			map[string]any{"name": "high", "condition": "score > 0.7", "action": "approve", "priority": 10},
		},
	})
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, "approve", res["decision"])
	assert.Equal(t, "high", res["selected_rule"])
	require.Len(t, decider.gotRules, 1)
	assert.Equal(t, 10, decider.gotRules[0].Priority)
}

func TestStoreData(t *testing.T) {
	reg, store, _ := setup(t)

	out, err := reg.Execute(stepCtx(), actions.StoreData, nil, map[string]any{
		"key":         "report",
		"value":       map[string]any{"ok": true},
		"memory_type": "episodic",
		"importance":  0.9,
		"ttl":         "1h",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]any)["stored"])

	mems, err := store.RetrieveMemories(context.Background(), "agent-1", domain.MemoryEpisodic, 0)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "report", mems[0].Key)
	assert.InDelta(t, 0.9, mems[0].Importance, 1e-9)
	assert.NotNil(t, mems[0].ExpiresAt)

	_, err = reg.Execute(stepCtx(), actions.StoreData, nil, map[string]any{"key": "k", "memory_type": "forever"})
	assert.Error(t, err)
}

func TestTransformData(t *testing.T) {
	reg, _, _ := setup(t)
	wctx := map[string]any{"suffix": "!"}

	out, err := reg.Execute(stepCtx(), actions.TransformData, wctx, map[string]any{
		"input":      map[string]any{"first": "Ada", "last": "Lovelace"},
		"expression": "input.first + ' ' + input.last + suffix",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace!", out.(map[string]any)["result"])

	_, err = reg.Execute(stepCtx(), actions.TransformData, wctx, map[string]any{"expression": "input +"})
	assert.Error(t, err)
}

func TestCallAPI_Placeholder(t *testing.T) {
	reg, _, _ := setup(t)
	out, err := reg.Execute(stepCtx(), actions.CallAPI, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "success", out.(map[string]any)["status"])
}

func TestCallAPI_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": body["q"], "method": r.Method})
	}))
	defer srv.Close()

	reg, _, _ := setup(t)
	out, err := reg.Execute(stepCtx(), actions.CallAPI, nil, map[string]any{
		"url":     srv.URL,
		"method":  "post",
		"body":    map[string]any{"q": "hi"},
		"retries": 3,
	})
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, 200, res["status_code"])
	assert.Equal(t, map[string]any{"echo": "hi", "method": "POST"}, res["data"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCallAPI_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	reg, _, _ := setup(t)
	_, err := reg.Execute(stepCtx(), actions.CallAPI, nil, map[string]any{"url": srv.URL, "retries": 5})

	var se *actions.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWait(t *testing.T) {
	reg, _, _ := setup(t)

	out, err := reg.Execute(stepCtx(), actions.Wait, nil, map[string]any{"duration": "10ms"})
	require.NoError(t, err)
	assert.Equal(t, "10ms", out.(map[string]any)["waited"])

	out, err = reg.Execute(stepCtx(), actions.Wait, nil, map[string]any{"duration": 0.01})
	require.NoError(t, err)
	assert.Equal(t, "10ms", out.(map[string]any)["waited"])
}

func TestWait_Cancelled(t *testing.T) {
	reg, _, _ := setup(t)
	ctx, cancel := context.WithTimeout(stepCtx(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := reg.Execute(ctx, actions.Wait, nil, map[string]any{"duration": "10s"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
