package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbiter/internal/params"
	"github.com/aretw0/arbiter/pkg/domain"
	"go.uber.org/zap"
)

// ExecuteWorkflow runs the workflow's steps in order, starting at its current
// step, until every step is done, a step aborts the run, or the workflow is
// paused or cancelled.
//
// The workflow must be ready or paused. When a paused workflow still has a
// step in flight, the draining run is re-armed and the caller receives its
// result instead of a second loop being started.
//
// Handler failures are reported in the result. The returned error is non-nil
// only for lookup, state or State Store failures; a store failure during the
// run is returned together with the failed result.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string) (*domain.ExecutionResult, error) {
	return e.execute(ctx, workflowID, false)
}

func (e *Engine) execute(ctx context.Context, workflowID string, resume bool) (*domain.ExecutionResult, error) {
	var (
		r      *run
		wf     *domain.Workflow
		runCtx context.Context
		owner  bool
	)

	err := e.withWorkflow(ctx, workflowID, func(ctx context.Context, w *domain.Workflow) error {
		wf = w

		e.mu.RLock()
		from := w.Status
		active := e.runs[workflowID]
		agentID, sessionID, wfType := w.AgentID, w.SessionID, w.Type
		input := domain.CloneMap(w.Context)
		e.mu.RUnlock()

		if !from.CanExecute() {
			return fmt.Errorf("%w: cannot execute workflow %s in status %s", domain.ErrInvalidState, workflowID, from)
		}

		if active != nil {
			e.mu.Lock()
			w.Status = domain.StatusRunning
			w.PausedAt = nil
			e.mu.Unlock()
			r = active

			e.logger.Info("workflow re-armed", zap.String("workflow_id", workflowID))
			e.emitStatus(ctx, w, from, domain.StatusRunning)
			return e.persistStatus(ctx, w)
		}

		execID, err := e.store.StartExecution(ctx, agentID, "workflow:"+wfType, input, domain.ExecutionOptions{
			TaskType: "workflow",
			Metadata: map[string]any{
				"workflow_id": workflowID,
				"session_id":  sessionID,
				"resume":      resume || from == domain.StatusPaused,
			},
		})
		if err != nil {
			return e.storeFailure(workflowID, "StartExecution", err)
		}

		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		r = &run{done: make(chan struct{}), cancel: cancel}
		owner = true

		now := e.now()
		e.mu.Lock()
		w.Status = domain.StatusRunning
		w.PausedAt = nil
		w.ExecutionID = execID
		if w.StartedAt == nil {
			w.StartedAt = &now
		}
		e.runs[workflowID] = r
		e.mu.Unlock()

		e.logger.Info("workflow started",
			zap.String("workflow_id", workflowID),
			zap.String("execution_id", execID),
			zap.String("from", string(from)),
		)
		e.emitStatus(ctx, w, from, domain.StatusRunning)
		return e.persistStatus(ctx, w)
	})
	if err != nil {
		if owner {
			// The status write failed after the run was registered.
			e.lockRun(ctx, wf, func(ctx context.Context) {
				e.finish(ctx, wf, r, domain.StatusFailed, err.Error(), err)
			})
			return r.result, r.err
		}
		return nil, err
	}

	if !owner {
		select {
		case <-r.done:
			return r.result, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.loop(runCtx, wf, r)
	return r.result, r.err
}

// stepWork is what the loop needs to run one step outside the lock.
type stepWork struct {
	index  int
	name   string
	action string
	config map[string]any
	wctx   map[string]any
	cont   bool
}

// loop drives the workflow until the run finishes. Bookkeeping happens under
// the workflow lock; handlers run without it.
func (e *Engine) loop(ctx context.Context, wf *domain.Workflow, r *run) {
	for {
		var (
			work *stepWork
			done bool
		)
		e.lockRun(ctx, wf, func(lctx context.Context) {
			work, done = e.boundary(ctx, lctx, wf, r)
		})
		if done {
			return
		}

		result, elapsed, herr := e.invoke(ctx, wf, work)

		e.lockRun(ctx, wf, func(lctx context.Context) {
			done = e.record(lctx, wf, r, work, result, herr, elapsed)
		})
		if done {
			return
		}
	}
}

// boundary decides, at a step boundary, whether the run stops or which step
// runs next. A returned true means the run has been finished.
func (e *Engine) boundary(runCtx, ctx context.Context, wf *domain.Workflow, r *run) (*stepWork, bool) {
	e.mu.Lock()
	status := wf.Status
	switch {
	case status == domain.StatusPaused || status == domain.StatusCancelled:
		e.mu.Unlock()
		e.finish(ctx, wf, r, status, "", nil)
		return nil, true
	case runCtx.Err() != nil:
		e.mu.Unlock()
		msg := fmt.Sprintf("execution interrupted: %v", runCtx.Err())
		e.finish(ctx, wf, r, domain.StatusFailed, msg, nil)
		return nil, true
	case wf.CurrentStep >= len(wf.Steps):
		e.mu.Unlock()
		e.finish(ctx, wf, r, domain.StatusCompleted, "", nil)
		return nil, true
	}

	now := e.now()
	step := &wf.Steps[wf.CurrentStep]
	if !step.Status.CanTransition(domain.StepRunning) {
		msg := transitionError(step, domain.StepRunning)
		e.mu.Unlock()
		e.finish(ctx, wf, r, domain.StatusFailed, msg, nil)
		return nil, true
	}
	step.Status = domain.StepRunning
	step.StartedAt = &now
	step.Error = ""
	work := &stepWork{
		index:  wf.CurrentStep,
		name:   step.Name,
		action: step.Action,
		config: domain.CloneMap(step.Config),
		wctx:   domain.CloneMap(wf.Context),
		cont:   step.ContinueOnError(),
	}
	e.mu.Unlock()

	e.logger.Debug("step started",
		zap.String("workflow_id", wf.ID),
		zap.String("step", work.name),
		zap.String("action", work.action),
		zap.Int("index", work.index),
	)
	e.emitStep(ctx, wf, domain.EventStepStart, work, domain.StepRunning, 0, "")
	return work, false
}

// invoke resolves the step config and calls its handler.
func (e *Engine) invoke(ctx context.Context, wf *domain.Workflow, work *stepWork) (result any, elapsed time.Duration, err error) {
	stepCtx := domain.WithStepInfo(ctx, domain.StepInfo{
		AgentID:    wf.AgentID,
		WorkflowID: wf.ID,
		SessionID:  wf.SessionID,
		StepName:   work.name,
		StepIndex:  work.index,
	})

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
		elapsed = time.Since(start)
		if err != nil {
			err = &domain.HandlerError{Step: work.name, Action: work.action, Err: err}
		}
	}()
	config := params.Resolve(work.wctx, work.config)
	result, err = e.registry.Execute(stepCtx, work.action, work.wctx, config)
	return result, 0, err
}

// record applies a step outcome and persists progress. A returned true means
// the run has been finished.
func (e *Engine) record(ctx context.Context, wf *domain.Workflow, r *run, work *stepWork, result any, herr error, elapsed time.Duration) bool {
	now := e.now()
	e.mu.Lock()
	if wf.Status == domain.StatusCancelled {
		e.mu.Unlock()
		e.finish(ctx, wf, r, domain.StatusCancelled, "", nil)
		return true
	}

	step := &wf.Steps[work.index]
	next := domain.StepCompleted
	if herr != nil {
		next = domain.StepFailed
	}
	if !step.Status.CanTransition(next) {
		msg := transitionError(step, next)
		e.mu.Unlock()
		e.finish(ctx, wf, r, domain.StatusFailed, msg, nil)
		return true
	}
	step.CompletedAt = &now
	abort := false
	if herr == nil {
		step.Status = domain.StepCompleted
		step.Result = result
		wf.Context[work.name] = result
		wf.CurrentStep = work.index + 1
	} else {
		step.Status = domain.StepFailed
		step.Error = herr.Error()
		if work.cont {
			wf.CurrentStep = work.index + 1
		} else {
			abort = true
		}
	}
	progress := wf.Progress()
	e.mu.Unlock()

	errMsg := ""
	if herr != nil {
		errMsg = herr.Error()
		e.logger.Warn("step failed",
			zap.String("workflow_id", wf.ID),
			zap.String("step", work.name),
			zap.String("action", work.action),
			zap.Bool("continue_on_error", work.cont),
			zap.Error(herr),
		)
	} else {
		e.logger.Debug("step completed",
			zap.String("workflow_id", wf.ID),
			zap.String("step", work.name),
			zap.Duration("duration", elapsed),
		)
	}
	e.emitStep(ctx, wf, domain.EventStepFinish, work, next, elapsed, errMsg)

	if err := e.persistStep(ctx, wf, work, result, errMsg, progress); err != nil {
		e.finish(ctx, wf, r, domain.StatusFailed, err.Error(), err)
		return true
	}
	if abort {
		e.finish(ctx, wf, r, domain.StatusFailed, errMsg, nil)
		return true
	}
	return false
}

func transitionError(step *domain.Step, next domain.StepStatus) string {
	return fmt.Sprintf("step %q cannot move from %s to %s", step.Name, step.Status, next)
}

// persistStep writes incremental progress and the step's episodic memory.
func (e *Engine) persistStep(ctx context.Context, wf *domain.Workflow, work *stepWork, result any, errMsg string, progress float64) error {
	e.mu.RLock()
	partial := map[string]any{
		"workflow_id":  wf.ID,
		"status":       string(wf.Status),
		"current_step": wf.CurrentStep,
		"progress":     progress,
	}
	e.mu.RUnlock()

	if _, err := e.store.UpdateState(ctx, wf.AgentID, wf.SessionID, partial); err != nil {
		return e.storeFailure(wf.ID, "UpdateState", err)
	}

	content := map[string]any{
		"workflow_id": wf.ID,
		"step":        work.name,
		"action":      work.action,
		"result":      result,
	}
	if errMsg != "" {
		content["error"] = errMsg
	}
	if _, err := e.store.StoreMemory(ctx, wf.AgentID, domain.MemoryEpisodic, "step:"+work.name, content, domain.MemoryOptions{Importance: 0.5}); err != nil {
		return e.storeFailure(wf.ID, "StoreMemory", err)
	}
	return nil
}

// finish closes the run with the given outcome. Must be called under the
// workflow lock, without e.mu held.
func (e *Engine) finish(ctx context.Context, wf *domain.Workflow, r *run, outcome domain.WorkflowStatus, errMsg string, cause error) {
	now := e.now()
	e.mu.Lock()
	from := wf.Status
	if outcome == domain.StatusCompleted || outcome == domain.StatusFailed {
		wf.Status = outcome
		wf.CompletedAt = &now
		wf.Error = errMsg
	}
	if e.runs[wf.ID] == r {
		delete(e.runs, wf.ID)
	}
	res := &domain.ExecutionResult{
		Success:       outcome == domain.StatusCompleted,
		WorkflowID:    wf.ID,
		Status:        outcome,
		StepsExecuted: wf.StepsExecuted(),
	}
	switch outcome {
	case domain.StatusCompleted, domain.StatusPaused:
		res.Context = domain.CloneMap(wf.Context)
	case domain.StatusCancelled:
		res.Error = "workflow cancelled"
	default:
		res.Error = errMsg
	}
	finalCtx := domain.CloneMap(wf.Context)
	partial := map[string]any{
		"workflow_id":  wf.ID,
		"status":       string(outcome),
		"current_step": wf.CurrentStep,
		"progress":     wf.Progress(),
	}
	execID := wf.ExecutionID
	e.mu.Unlock()

	if outcome == domain.StatusCompleted || outcome == domain.StatusFailed {
		if outcome == domain.StatusCompleted {
			partial["context"] = finalCtx
		} else {
			partial["error"] = errMsg
		}
		if _, err := e.store.UpdateState(ctx, wf.AgentID, wf.SessionID, partial); err != nil && cause == nil {
			cause = e.storeFailure(wf.ID, "UpdateState", err)
		}
	}
	if err := e.store.CompleteExecution(ctx, execID, finalCtx, executionStatus(outcome), res.Error); err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) || cause != nil {
			e.logger.Warn("failed to close execution record", zap.String("workflow_id", wf.ID), zap.Error(err))
		} else {
			cause = e.storeFailure(wf.ID, "CompleteExecution", err)
		}
	}

	switch outcome {
	case domain.StatusCompleted:
		e.logger.Info("workflow completed", zap.String("workflow_id", wf.ID), zap.Int("steps_executed", res.StepsExecuted))
	case domain.StatusFailed:
		e.logger.Info("workflow failed", zap.String("workflow_id", wf.ID), zap.String("error", errMsg))
	default:
		e.logger.Info("workflow run stopped", zap.String("workflow_id", wf.ID), zap.String("status", string(outcome)))
	}
	if from != outcome {
		e.emitStatus(ctx, wf, from, outcome)
	}

	r.result = res
	r.err = cause
	r.cancel()
	close(r.done)
}

func (e *Engine) persistStatus(ctx context.Context, wf *domain.Workflow) error {
	e.mu.RLock()
	partial := map[string]any{"status": string(wf.Status)}
	e.mu.RUnlock()
	if _, err := e.store.UpdateState(ctx, wf.AgentID, wf.SessionID, partial); err != nil {
		return e.storeFailure(wf.ID, "UpdateState", err)
	}
	return nil
}

// lockRun runs fn under the workflow lock. Bookkeeping must complete even
// after the run context is cancelled, so the lock context drops cancellation.
func (e *Engine) lockRun(ctx context.Context, wf *domain.Workflow, fn func(context.Context)) {
	err := e.sessions.WithLock(context.WithoutCancel(ctx), wf.ID, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		// Only a distributed locker can fail here; proceed so the run cannot hang.
		e.logger.Error("failed to acquire workflow lock", zap.String("workflow_id", wf.ID), zap.Error(err))
		fn(context.WithoutCancel(ctx))
	}
}

func (e *Engine) emitStep(ctx context.Context, wf *domain.Workflow, typ domain.EventType, work *stepWork, status domain.StepStatus, d time.Duration, errMsg string) {
	hook := e.hooks.OnStepStart
	if typ == domain.EventStepFinish {
		hook = e.hooks.OnStepFinish
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{
			Timestamp:  e.now(),
			Type:       typ,
			AgentID:    wf.AgentID,
			WorkflowID: wf.ID,
		},
		StepName: work.name,
		Action:   work.action,
		Status:   status,
		Duration: d,
		Error:    errMsg,
	})
}

func executionStatus(s domain.WorkflowStatus) domain.ExecutionStatus {
	switch s {
	case domain.StatusCompleted:
		return domain.ExecutionCompleted
	case domain.StatusPaused:
		return domain.ExecutionPaused
	case domain.StatusCancelled:
		return domain.ExecutionCancelled
	default:
		return domain.ExecutionFailed
	}
}
