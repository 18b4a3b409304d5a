package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/aretw0/arbiter/pkg/registry"
	"github.com/aretw0/arbiter/pkg/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine owns the workflow lifecycle: creation, step definition, sequential
// execution and pause/resume/cancel control.
//
// Workflow records live in an in-memory table. Every mutation of a given
// workflow is serialized through the session manager keyed by workflow id;
// handlers run outside that lock so control operations never wait on them.
type Engine struct {
	store    ports.StateStore
	registry *registry.Registry
	sessions *session.Manager
	logger   *zap.Logger
	hooks    domain.LifecycleHooks
	newID    func() string
	now      func() time.Time

	// mu guards the table and the fields of every workflow in it.
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
	runs      map[string]*run
}

// run tracks the execution loop currently driving a workflow.
type run struct {
	done   chan struct{}
	result *domain.ExecutionResult
	err    error
	cancel context.CancelFunc
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithSessionManager replaces the per-workflow lock manager,
// e.g. with one backed by a distributed locker.
func WithSessionManager(m *session.Manager) Option {
	return func(e *Engine) {
		if m != nil {
			e.sessions = m
		}
	}
}

// WithIDGenerator overrides how workflow, session and step ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(store ports.StateStore, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		registry:  reg,
		sessions:  session.NewManager(),
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
		workflows: make(map[string]*domain.Workflow),
		runs:      make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the action handler registry used by the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// CreateWorkflow registers a new workflow and its session with the State Store.
func (e *Engine) CreateWorkflow(ctx context.Context, agentID, workflowType string, cfg domain.WorkflowConfig) (*domain.Workflow, error) {
	id := e.newID()
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = e.newID()
	}
	wf := domain.NewWorkflow(id, agentID, sessionID, workflowType, cfg.InitialContext, e.now())

	initial := map[string]any{
		"workflow_id":   id,
		"workflow_type": workflowType,
		"status":        string(domain.StatusInitialized),
	}
	if len(cfg.Metadata) > 0 {
		initial["metadata"] = domain.CloneMap(cfg.Metadata)
	}
	if _, err := e.store.StartSession(ctx, agentID, sessionID, initial); err != nil {
		e.logger.Error("failed to start session", zap.String("workflow_id", id), zap.Error(err))
		return nil, &domain.StoreError{Op: "StartSession", Err: err}
	}

	e.mu.Lock()
	e.workflows[id] = wf
	clone := wf.Clone()
	e.mu.Unlock()

	e.logger.Info("workflow created",
		zap.String("workflow_id", id),
		zap.String("agent_id", agentID),
		zap.String("session_id", sessionID),
		zap.String("type", workflowType),
	)
	e.emitStatus(ctx, wf, "", domain.StatusInitialized)
	return clone, nil
}

// DefineSteps replaces the step list of a workflow that has not started executing.
func (e *Engine) DefineSteps(ctx context.Context, workflowID string, defs []domain.StepDefinition) error {
	return e.withWorkflow(ctx, workflowID, func(ctx context.Context, wf *domain.Workflow) error {
		steps, err := e.buildSteps(defs)
		if err != nil {
			return err
		}

		e.mu.Lock()
		from := wf.Status
		if from != domain.StatusInitialized && from != domain.StatusReady {
			e.mu.Unlock()
			return fmt.Errorf("%w: cannot define steps of workflow %s in status %s", domain.ErrInvalidState, workflowID, from)
		}
		wf.Steps = steps
		wf.CurrentStep = 0
		wf.Status = domain.StatusReady
		agentID, sessionID := wf.AgentID, wf.SessionID
		e.mu.Unlock()

		e.logger.Info("workflow steps defined", zap.String("workflow_id", workflowID), zap.Int("steps", len(steps)))
		if from != domain.StatusReady {
			e.emitStatus(ctx, wf, from, domain.StatusReady)
		}

		if _, err := e.store.UpdateState(ctx, agentID, sessionID, map[string]any{
			"status":      string(domain.StatusReady),
			"total_steps": len(steps),
		}); err != nil {
			return e.storeFailure(workflowID, "UpdateState", err)
		}
		return nil
	})
}

func (e *Engine) buildSteps(defs []domain.StepDefinition) ([]domain.Step, error) {
	seen := make(map[string]bool, len(defs))
	steps := make([]domain.Step, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: step %d has no name", domain.ErrInvalidStep, i)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: duplicate step name %q", domain.ErrInvalidStep, def.Name)
		}
		seen[def.Name] = true
		if def.Action == "" {
			return nil, fmt.Errorf("%w: step %q has no action", domain.ErrInvalidStep, def.Name)
		}
		if !e.registry.Has(def.Action) {
			return nil, fmt.Errorf("%w: step %q references %q", domain.ErrUnknownAction, def.Name, def.Action)
		}
		steps[i] = domain.Step{
			ID:     e.newID(),
			Order:  i,
			Name:   def.Name,
			Action: def.Action,
			Config: domain.CloneMap(def.Config),
			Status: domain.StepPending,
		}
	}
	return steps, nil
}

// GetWorkflowStatus returns a status snapshot, or false when the workflow is not tracked.
func (e *Engine) GetWorkflowStatus(workflowID string) (domain.Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		return domain.Snapshot{}, false
	}
	return wf.Snapshot(), true
}

// GetWorkflow returns a copy of the workflow record.
func (e *Engine) GetWorkflow(workflowID string) (*domain.Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		return nil, false
	}
	return wf.Clone(), true
}

// ListActiveWorkflows returns summaries of every tracked workflow, oldest first.
func (e *Engine) ListActiveWorkflows() []domain.Summary {
	e.mu.RLock()
	out := make([]domain.Summary, 0, len(e.workflows))
	for _, wf := range e.workflows {
		out = append(out, wf.Summary())
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].WorkflowID < out[j].WorkflowID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RemoveWorkflow drops a completed or failed workflow from the table.
func (e *Engine) RemoveWorkflow(ctx context.Context, workflowID string) error {
	return e.withWorkflow(ctx, workflowID, func(ctx context.Context, wf *domain.Workflow) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !wf.Status.IsTerminal() {
			return fmt.Errorf("%w: workflow %s is %s", domain.ErrInvalidState, workflowID, wf.Status)
		}
		delete(e.workflows, workflowID)
		return nil
	})
}

// withWorkflow runs fn under the workflow's lock.
// fn must take e.mu itself before touching workflow fields.
func (e *Engine) withWorkflow(ctx context.Context, workflowID string, fn func(context.Context, *domain.Workflow) error) error {
	return e.sessions.WithLock(ctx, workflowID, func(ctx context.Context) error {
		e.mu.RLock()
		wf, ok := e.workflows[workflowID]
		e.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: workflow %s", domain.ErrNotFound, workflowID)
		}
		return fn(ctx, wf)
	})
}

func (e *Engine) storeFailure(workflowID, op string, err error) error {
	e.logger.Error("state store call failed",
		zap.String("workflow_id", workflowID),
		zap.String("op", op),
		zap.Error(err),
	)
	return &domain.StoreError{Op: op, Err: err}
}

func (e *Engine) emitStatus(ctx context.Context, wf *domain.Workflow, from, to domain.WorkflowStatus) {
	if e.hooks.OnWorkflowStatus == nil {
		return
	}
	e.hooks.OnWorkflowStatus(ctx, &domain.WorkflowEvent{
		EventBase: domain.EventBase{
			Timestamp:  e.now(),
			Type:       domain.EventWorkflowStatus,
			AgentID:    wf.AgentID,
			WorkflowID: wf.ID,
		},
		From: from,
		To:   to,
	})
}
