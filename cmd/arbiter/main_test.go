package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbiter/internal/config"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const workflowYAML = `
workflow:
  type: greeting
  agent_id: tester
  steps:
    - name: save
      action: store_data
      config:
        key: greeting
        value: hello
    - name: shout
      action: transform_data
      config:
        input: $.save.key
        expression: input + "!"
`

const rulesYAML = `
context:
  score: 0.2
rules:
  - name: trusted
    condition: score > 0.8
    action: approve
    priority: 10
  - name: default
    condition: "true"
    action: review
    priority: 0
`

const planYAML = `
plan:
  current: {verified: false, profiled: false}
  goal: {verified: true, profiled: true}
  actions:
    - name: verify
      effects: {verified: true}
    - name: profile
      effects: {profiled: true}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error", "--store", "memory"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, "workflow.yaml", workflowYAML)

	out, err := execute(t, "run", "-f", path)
	require.NoError(t, err)

	var res domain.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 2, res.StepsExecuted)
	shout := res.Context["shout"].(map[string]any)
	assert.Equal(t, "greeting!", shout["result"])
}

func TestRunCommand_FailedWorkflow(t *testing.T) {
	path := writeFile(t, "workflow.yaml", `
workflow:
  type: broken
  steps:
    - name: save
      action: store_data
      config: {}
`)
	out, err := execute(t, "run", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow failed")
	assert.Contains(t, out, `"status": "failed"`)
}

func TestDecideCommand(t *testing.T) {
	path := writeFile(t, "rules.yaml", rulesYAML)

	out, err := execute(t, "decide", "-f", path, "--context", "")
	require.NoError(t, err)
	var d domain.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "review", d.RecommendedAction)

	out, err = execute(t, "decide", "-f", path, "--context", `{"score": 0.95}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "approve", d.RecommendedAction)
	assert.Equal(t, "trusted", d.SelectedRule.Name)

	_, err = execute(t, "decide", "-f", path, "--context", "{not json")
	assert.Error(t, err)
}

func TestPlanCommand(t *testing.T) {
	path := writeFile(t, "plan.yaml", planYAML)

	out, err := execute(t, "plan", "-f", path)
	require.NoError(t, err)
	var plan domain.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.True(t, plan.Success)
	assert.Equal(t, []string{"verify", "profile"}, plan.ActionNames())
}

func TestGraphCommand(t *testing.T) {
	path := writeFile(t, "workflow.yaml", workflowYAML)

	out, err := execute(t, "graph", "-f", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))
	assert.Contains(t, out, "save --> shout")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "arbiter version "))
}

func TestSectionMissing(t *testing.T) {
	path := writeFile(t, "rules.yaml", rulesYAML)
	_, err := execute(t, "run", "-f", path)
	assert.ErrorContains(t, err, "no workflow section")
}

func TestNewStore(t *testing.T) {
	logger := zap.NewNop()

	t.Run("file", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreFile, DataDir: t.TempDir()}
		store, sessions, closeFn, err := newStore(cfg, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.NotNil(t, store)
		assert.Nil(t, sessions)
	})

	t.Run("redis with distributed lock", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{
			Store:           config.StoreRedis,
			RedisAddr:       mr.Addr(),
			RedisPrefix:     "test:",
			DistributedLock: true,
		}
		store, sessions, closeFn, err := newStore(cfg, logger)
		require.NoError(t, err)
		defer closeFn()
		require.NotNil(t, sessions)
		assert.True(t, sessions.Distributed())

		ctx := context.Background()
		_, err = store.StartSession(ctx, "agent", "s1", map[string]any{"k": "v"})
		require.NoError(t, err)
		require.NoError(t, sessions.WithLock(ctx, "wf-1", func(context.Context) error { return nil }))
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, _, err := newStore(&config.Config{Store: "tape"}, logger)
		assert.Error(t, err)
	})
}
