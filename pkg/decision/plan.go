package decision

import (
	"context"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/expr"
	"go.uber.org/zap"
)

const (
	goalScore    = 10
	historyBonus = 5
)

// PlanActions searches greedily for an action sequence turning current into goal.
//
// Each round scores every action: +10 per goal attribute it newly satisfies,
// +5 when it appeared in a past successful plan. Actions satisfying nothing new
// are not candidates. The best one (first on ties) is applied to the simulated
// state. The search stops when the goal holds, no candidate remains, or the
// step bound is reached. It is neither optimal nor complete.
func (f *Framework) PlanActions(ctx context.Context, agentID string, current, goal map[string]any, available []domain.Action) (*domain.Plan, error) {
	favored, err := f.pastPlanActions(ctx, agentID)
	if err != nil {
		return nil, err
	}

	state := domain.CloneMap(current)
	plan := &domain.Plan{Actions: []domain.Action{}}

	for len(plan.Actions) < f.maxSteps && !satisfies(state, goal) {
		best, bestScore := -1, 0
		for i, a := range available {
			gained := newlySatisfied(state, goal, a.Effects)
			if gained == 0 {
				continue
			}
			score := gained * goalScore
			if favored[a.Name] {
				score += historyBonus
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		chosen := available[best]
		plan.Actions = append(plan.Actions, chosen)
		for k, v := range chosen.Effects {
			state[k] = v
		}
	}

	plan.Steps = len(plan.Actions)
	plan.FinalState = state
	plan.Success = satisfies(state, goal)
	if !plan.Success {
		plan.Reason = "Could not find path to goal"
		f.logger.Debug("no plan found", zap.String("agent_id", agentID), zap.Int("steps", plan.Steps))
		return plan, nil
	}
	plan.EstimatedSuccessRate = f.successRate

	names := make([]any, len(plan.Actions))
	for i, a := range plan.Actions {
		names[i] = a.Name
	}
	if _, err := f.remember(ctx, agentID, domain.MemorySemantic, PlanSuccessKey, map[string]any{
		"actions": names,
		"goal":    domain.CloneMap(goal),
		"steps":   plan.Steps,
	}, 0.9); err != nil {
		return plan, err
	}

	f.logger.Debug("plan found", zap.String("agent_id", agentID), zap.Strings("actions", plan.ActionNames()))
	return plan, nil
}

// pastPlanActions collects action names from previously successful plans.
func (f *Framework) pastPlanActions(ctx context.Context, agentID string) (map[string]bool, error) {
	mems, err := f.store.SearchMemories(ctx, agentID, PlanSuccessKey)
	if err != nil {
		f.logger.Error("failed to search past plans", zap.String("agent_id", agentID), zap.Error(err))
		return nil, &domain.StoreError{Op: "SearchMemories", Err: err}
	}
	names := make(map[string]bool)
	for _, m := range mems {
		switch list := m.Content["actions"].(type) {
		case []any:
			for _, v := range list {
				if s, ok := v.(string); ok {
					names[s] = true
				}
			}
		case []string:
			for _, s := range list {
				names[s] = true
			}
		}
	}
	return names, nil
}

// satisfies reports whether every goal key holds in state. Extra state keys are ignored.
func satisfies(state, goal map[string]any) bool {
	for k, want := range goal {
		got, ok := state[k]
		if !ok || !expr.Equal(got, want) {
			return false
		}
	}
	return true
}

// newlySatisfied counts goal keys unmet in state that effects would meet.
func newlySatisfied(state, goal, effects map[string]any) int {
	n := 0
	for k, want := range goal {
		if got, ok := state[k]; ok && expr.Equal(got, want) {
			continue
		}
		if v, ok := effects[k]; ok && expr.Equal(v, want) {
			n++
		}
	}
	return n
}
