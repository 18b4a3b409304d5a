package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
// Values are compared after a JSON-style round trip, so numbers come back as float64.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	newAgent := func() string { return "contract-agent-" + uuid.NewString() }

	t.Run("Start and Load Session", func(t *testing.T) {
		agent := newAgent()
		sess, err := store.StartSession(ctx, agent, "s1", map[string]any{"foo": "bar"})
		require.NoError(t, err)
		assert.Equal(t, agent, sess.AgentID)
		assert.Equal(t, "s1", sess.SessionID)

		loaded, err := store.LoadSession(ctx, agent, "s1")
		require.NoError(t, err)
		assert.Equal(t, "bar", loaded.State["foo"])
	})

	t.Run("Start Session Overwrites", func(t *testing.T) {
		agent := newAgent()
		_, err := store.StartSession(ctx, agent, "s1", map[string]any{"old": true})
		require.NoError(t, err)
		_, err = store.StartSession(ctx, agent, "s1", map[string]any{"new": true})
		require.NoError(t, err)

		loaded, err := store.LoadSession(ctx, agent, "s1")
		require.NoError(t, err)
		assert.NotContains(t, loaded.State, "old")
		assert.Equal(t, true, loaded.State["new"])
	})

	t.Run("Load Non-Existent Session", func(t *testing.T) {
		_, err := store.LoadSession(ctx, newAgent(), "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Update State Merges", func(t *testing.T) {
		agent := newAgent()
		_, err := store.StartSession(ctx, agent, "s1", map[string]any{"a": "1", "b": "2"})
		require.NoError(t, err)

		merged, err := store.UpdateState(ctx, agent, "s1", map[string]any{"b": "changed", "c": 3})
		require.NoError(t, err)
		assert.Equal(t, "1", merged["a"])
		assert.Equal(t, "changed", merged["b"])
		assert.EqualValues(t, 3, merged["c"])

		loaded, err := store.LoadSession(ctx, agent, "s1")
		require.NoError(t, err)
		assert.Equal(t, "changed", loaded.State["b"])
		assert.Equal(t, "1", loaded.State["a"])
	})

	t.Run("Update State Unknown Session", func(t *testing.T) {
		_, err := store.UpdateState(ctx, newAgent(), "missing", map[string]any{"x": 1})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Store Memory", func(t *testing.T) {
		agent := newAgent()
		mem, err := store.StoreMemory(ctx, agent, domain.MemoryEpisodic, "k", map[string]any{"v": "x"}, domain.MemoryOptions{Importance: 0.7})
		require.NoError(t, err)
		assert.NotEmpty(t, mem.ID)
		assert.Equal(t, agent, mem.AgentID)
		assert.Equal(t, domain.MemoryEpisodic, mem.Type)
		assert.Equal(t, "k", mem.Key)
		assert.InDelta(t, 0.7, mem.Importance, 1e-9)
	})

	t.Run("Retrieve Newest First With Limit", func(t *testing.T) {
		agent := newAgent()
		for _, k := range []string{"first", "second", "third"} {
			_, err := store.StoreMemory(ctx, agent, domain.MemorySemantic, k, map[string]any{"k": k}, domain.MemoryOptions{})
			require.NoError(t, err)
		}

		all, err := store.RetrieveMemories(ctx, agent, domain.MemorySemantic, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "third", all[0].Key)
		assert.Equal(t, "second", all[1].Key)
		assert.Equal(t, "first", all[2].Key)
		assert.Equal(t, "third", all[0].Content["k"])

		limited, err := store.RetrieveMemories(ctx, agent, domain.MemorySemantic, 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "third", limited[0].Key)
	})

	t.Run("Retrieve Filters By Type", func(t *testing.T) {
		agent := newAgent()
		_, err := store.StoreMemory(ctx, agent, domain.MemoryEpisodic, "ep", nil, domain.MemoryOptions{})
		require.NoError(t, err)
		_, err = store.StoreMemory(ctx, agent, domain.MemorySemantic, "sem", nil, domain.MemoryOptions{})
		require.NoError(t, err)

		sem, err := store.RetrieveMemories(ctx, agent, domain.MemorySemantic, 10)
		require.NoError(t, err)
		require.Len(t, sem, 1)
		assert.Equal(t, "sem", sem[0].Key)

		all, err := store.RetrieveMemories(ctx, agent, "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("Retrieve Excludes Expired", func(t *testing.T) {
		agent := newAgent()
		past := time.Now().Add(-time.Minute)
		future := time.Now().Add(time.Hour)
		_, err := store.StoreMemory(ctx, agent, domain.MemoryShortTerm, "stale", nil, domain.MemoryOptions{ExpiresAt: &past})
		require.NoError(t, err)
		_, err = store.StoreMemory(ctx, agent, domain.MemoryShortTerm, "fresh", nil, domain.MemoryOptions{ExpiresAt: &future})
		require.NoError(t, err)

		got, err := store.RetrieveMemories(ctx, agent, domain.MemoryShortTerm, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "fresh", got[0].Key)

		found, err := store.SearchMemories(ctx, agent, "")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "fresh", found[0].Key)
	})

	t.Run("Search By Prefix", func(t *testing.T) {
		agent := newAgent()
		for _, k := range []string{"plan:success", "plan:failure", "decision:x", "plan:success"} {
			_, err := store.StoreMemory(ctx, agent, domain.MemorySemantic, k, nil, domain.MemoryOptions{})
			require.NoError(t, err)
		}

		found, err := store.SearchMemories(ctx, agent, "plan:")
		require.NoError(t, err)
		assert.Len(t, found, 3)

		exact, err := store.SearchMemories(ctx, agent, "plan:success")
		require.NoError(t, err)
		assert.Len(t, exact, 2)

		none, err := store.SearchMemories(ctx, newAgent(), "plan:")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Execution Lifecycle", func(t *testing.T) {
		agent := newAgent()
		id, err := store.StartExecution(ctx, agent, "workflow:demo", map[string]any{"in": "x"}, domain.ExecutionOptions{
			TaskType: "workflow",
			Metadata: map[string]any{"workflow_id": "wf-1"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		exec, err := store.GetExecution(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionRunning, exec.Status)
		assert.Equal(t, "workflow:demo", exec.TaskName)
		assert.Equal(t, "workflow", exec.TaskType)
		assert.Nil(t, exec.CompletedAt)

		err = store.CompleteExecution(ctx, id, map[string]any{"out": "y"}, domain.ExecutionFailed, "boom")
		require.NoError(t, err)

		exec, err = store.GetExecution(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionFailed, exec.Status)
		assert.Equal(t, "boom", exec.Error)
		assert.Equal(t, "y", exec.Output["out"])
		assert.NotNil(t, exec.CompletedAt)
	})

	t.Run("Complete Unknown Execution", func(t *testing.T) {
		err := store.CompleteExecution(ctx, "missing-"+uuid.NewString(), nil, domain.ExecutionCompleted, "")
		assert.ErrorIs(t, err, domain.ErrExecutionNotFound)

		_, err = store.GetExecution(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
	})
}
