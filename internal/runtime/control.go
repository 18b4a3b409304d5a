package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/arbiter/pkg/domain"
	"go.uber.org/zap"
)

// PauseWorkflow marks the workflow paused. A step already in flight finishes;
// the running loop stops at the next step boundary.
// Pausing an already paused workflow is a no-op.
func (e *Engine) PauseWorkflow(ctx context.Context, workflowID string) error {
	return e.withWorkflow(ctx, workflowID, func(ctx context.Context, wf *domain.Workflow) error {
		now := e.now()
		e.mu.Lock()
		from := wf.Status
		if from.IsTerminal() {
			e.mu.Unlock()
			return fmt.Errorf("%w: cannot pause workflow %s in status %s", domain.ErrInvalidState, workflowID, from)
		}
		if from == domain.StatusPaused {
			e.mu.Unlock()
			return nil
		}
		wf.Status = domain.StatusPaused
		wf.PausedAt = &now
		e.mu.Unlock()

		e.logger.Info("workflow paused", zap.String("workflow_id", workflowID), zap.String("from", string(from)))
		e.emitStatus(ctx, wf, from, domain.StatusPaused)
		return e.persistStatus(ctx, wf)
	})
}

// ResumeWorkflow continues a paused workflow from its current step.
// It behaves exactly like ExecuteWorkflow.
func (e *Engine) ResumeWorkflow(ctx context.Context, workflowID string) (*domain.ExecutionResult, error) {
	e.logger.Info("resuming workflow", zap.String("workflow_id", workflowID))
	return e.execute(ctx, workflowID, true)
}

// CancelWorkflow marks the workflow cancelled and drops it from the table.
// The context of an in-flight handler is cancelled; its result is discarded.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowID string) error {
	return e.withWorkflow(ctx, workflowID, func(ctx context.Context, wf *domain.Workflow) error {
		now := e.now()
		e.mu.Lock()
		from := wf.Status
		if from.IsTerminal() {
			e.mu.Unlock()
			return fmt.Errorf("%w: cannot cancel workflow %s in status %s", domain.ErrInvalidState, workflowID, from)
		}
		wf.Status = domain.StatusCancelled
		wf.CompletedAt = &now
		delete(e.workflows, workflowID)
		active := e.runs[workflowID]
		e.mu.Unlock()

		if active != nil {
			active.cancel()
		}

		e.logger.Info("workflow cancelled", zap.String("workflow_id", workflowID), zap.String("from", string(from)))
		e.emitStatus(ctx, wf, from, domain.StatusCancelled)
		return e.persistStatus(ctx, wf)
	})
}
