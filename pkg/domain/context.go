package domain

import "context"

// StepInfo identifies the step a handler is running for.
type StepInfo struct {
	AgentID    string
	WorkflowID string
	SessionID  string
	StepName   string
	StepIndex  int
}

type stepInfoKey struct{}

// WithStepInfo returns a context carrying info.
func WithStepInfo(ctx context.Context, info StepInfo) context.Context {
	return context.WithValue(ctx, stepInfoKey{}, info)
}

// StepInfoFrom extracts the StepInfo stored by the engine, if any.
func StepInfoFrom(ctx context.Context) (StepInfo, bool) {
	info, ok := ctx.Value(stepInfoKey{}).(StepInfo)
	return info, ok
}
