package decision

import (
	"context"
	"sort"

	"github.com/aretw0/arbiter/pkg/domain"
	"go.uber.org/zap"
)

// MakeDecision evaluates rules against wctx enriched with the agent's recent
// semantic memories under "past_experiences". The caller's map is not modified.
//
// A rule whose condition is empty, fails to compile or fails to evaluate does
// not match. Matching rules are ordered by priority, highest first, keeping
// input order on ties; the first one governs the decision.
func (f *Framework) MakeDecision(ctx context.Context, agentID string, wctx map[string]any, rules []domain.Rule) (*domain.Decision, error) {
	mems, err := f.recall(ctx, agentID, domain.MemorySemantic, pastExperienceLimit)
	if err != nil {
		return nil, err
	}
	past := make([]any, len(mems))
	for i, m := range mems {
		past[i] = memoryView(m)
	}
	enriched := domain.CloneMap(wctx)
	enriched["past_experiences"] = past

	matched := []domain.Rule{}
	for _, rule := range rules {
		if f.holds(rule, enriched) {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 {
		d := &domain.Decision{
			Decision:          domain.DecisionNoMatch,
			RecommendedAction: fallbackAction(rules),
			MatchedRules:      matched,
			Context:           enriched,
		}
		f.logger.Debug("no rule matched", zap.String("agent_id", agentID), zap.Int("rules", len(rules)))
		f.emit(ctx, agentID, d)
		return d, nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	selected := matched[0]
	d := &domain.Decision{
		Decision:          selected.Action,
		RecommendedAction: selected.Action,
		SelectedRule:      &selected,
		MatchedRules:      matched,
		Confidence:        confidence(matched),
		Context:           enriched,
	}

	names := make([]any, len(matched))
	for i, r := range matched {
		names[i] = r.Name
	}
	if _, err := f.remember(ctx, agentID, domain.MemoryEpisodic, "decision:"+selected.Name, map[string]any{
		"context":       domain.CloneMap(wctx),
		"matched_rules": names,
		"selected_rule": selected.Name,
		"decision":      selected.Action,
		"confidence":    d.Confidence,
	}, 0.8); err != nil {
		return d, err
	}

	f.logger.Debug("decision made",
		zap.String("agent_id", agentID),
		zap.String("rule", selected.Name),
		zap.String("decision", selected.Action),
		zap.Int("matched", len(matched)),
		zap.Float64("confidence", d.Confidence),
	)
	f.emit(ctx, agentID, d)
	return d, nil
}

func (f *Framework) holds(rule domain.Rule, env map[string]any) bool {
	if rule.Condition == "" {
		return false
	}
	prog, err := f.compile(rule.Condition)
	if err != nil {
		f.logger.Debug("rule condition rejected", zap.String("rule", rule.Name), zap.Error(err))
		return false
	}
	ok, err := prog.EvalBool(env)
	if err != nil {
		f.logger.Debug("rule condition failed", zap.String("rule", rule.Name), zap.Error(err))
		return false
	}
	return ok
}

// confidence is min(0.5 + avgPriority/10 + 0.1*matches, 1), floored at 0.
func confidence(matched []domain.Rule) float64 {
	sum := 0
	for _, r := range matched {
		sum += r.Priority
	}
	avg := float64(sum) / float64(len(matched))
	c := 0.5 + avg/10 + 0.1*float64(len(matched))
	switch {
	case c > 1:
		return 1
	case c < 0:
		return 0
	}
	return c
}

func fallbackAction(rules []domain.Rule) string {
	for _, r := range rules {
		if r.Name == domain.DefaultRuleName && r.Action != "" {
			return r.Action
		}
	}
	return domain.DefaultRecommendedAction
}

func (f *Framework) emit(ctx context.Context, agentID string, d *domain.Decision) {
	if f.hooks.OnDecision == nil {
		return
	}
	f.hooks.OnDecision(ctx, &domain.DecisionEvent{
		EventBase: domain.EventBase{
			Timestamp: f.now(),
			Type:      domain.EventDecision,
			AgentID:   agentID,
		},
		Decision:   d.Decision,
		Matched:    len(d.MatchedRules),
		Confidence: d.Confidence,
	})
}
