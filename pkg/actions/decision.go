package actions

import (
	"context"
	"fmt"

	"github.com/aretw0/arbiter/pkg/domain"
	"go.uber.org/zap"
)

type decisionConfig struct {
	AgentID   string        `mapstructure:"agent_id"`
	Condition string        `mapstructure:"condition"`
	Rules     []domain.Rule `mapstructure:"rules"`
}

// makeDecision evaluates either a single condition or a rule set.
// A condition that fails to evaluate is reported as false, never as a step failure.
func (h *handlers) makeDecision(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	var cfg decisionConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}

	if len(cfg.Rules) > 0 {
		if h.deps.Decider == nil {
			return nil, fmt.Errorf("%s: decider: %w", MakeDecision, ErrNotConfigured)
		}
		agentID, err := agentFor(ctx, cfg.AgentID)
		if err != nil {
			return nil, err
		}
		d, err := h.deps.Decider.MakeDecision(ctx, agentID, wctx, cfg.Rules)
		if err != nil {
			return nil, err
		}
		out := map[string]any{
			"decision":           d.Decision,
			"recommended_action": d.RecommendedAction,
			"confidence":         d.Confidence,
		}
		if d.SelectedRule != nil {
			out["selected_rule"] = d.SelectedRule.Name
		}
		return out, nil
	}

	if cfg.Condition == "" {
		return nil, fmt.Errorf("%s: condition or rules required", MakeDecision)
	}
	ok, err := h.evalCondition(cfg.Condition, wctx)
	out := map[string]any{"condition": cfg.Condition, "decision": ok}
	if err != nil {
		h.deps.Logger.Debug("condition evaluated as no match", zap.String("condition", cfg.Condition), zap.Error(err))
		out["error"] = err.Error()
	}
	return out, nil
}

func (h *handlers) evalCondition(condition string, wctx map[string]any) (bool, error) {
	prog, err := h.deps.Cache.Compile(condition)
	if err != nil {
		return false, err
	}
	return prog.EvalBool(wctx)
}
