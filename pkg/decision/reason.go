package decision

import (
	"context"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/expr"
	"go.uber.org/zap"
)

const (
	manipulationThreshold = 0.7
	defaultFactConfidence = 0.7
)

// Reason draws inferences about situation from the agent's background
// knowledge (up to 20 semantic memories) plus knownFacts.
//
// A fact contributes when its "pattern" holds for the situation. A string
// pattern is an expression evaluated against the situation; a map pattern
// matches when every key equals the situation's value. Evaluation failures
// do not match.
func (f *Framework) Reason(ctx context.Context, agentID string, situation map[string]any, knownFacts []map[string]any) (*domain.Reasoning, error) {
	background, err := f.recall(ctx, agentID, domain.MemorySemantic, backgroundLimit)
	if err != nil {
		return nil, err
	}
	facts := make([]map[string]any, 0, len(background)+len(knownFacts))
	for _, m := range background {
		facts = append(facts, m.Content)
	}
	facts = append(facts, knownFacts...)

	inferences := []domain.Inference{}
	if score, ok := number(situation["manipulation_score"]); ok && score > manipulationThreshold {
		inferences = append(inferences, domain.Inference{
			Conclusion: "Content is likely manipulated",
			Confidence: score,
			Source:     "manipulation_score",
		})
	}
	for _, fact := range facts {
		if inf, ok := f.applyFact(fact, situation); ok {
			inferences = append(inferences, inf)
		}
	}

	out := &domain.Reasoning{
		Situation:     domain.CloneMap(situation),
		Inferences:    inferences,
		Confidence:    0.3,
		FactsAnalyzed: len(facts),
	}
	if len(inferences) > 0 {
		out.Confidence = 0.7
	}

	trace := make([]any, len(inferences))
	for i, inf := range inferences {
		trace[i] = map[string]any{
			"conclusion": inf.Conclusion,
			"confidence": inf.Confidence,
			"source":     inf.Source,
		}
	}
	if _, err := f.remember(ctx, agentID, domain.MemoryEpisodic, "reasoning", map[string]any{
		"situation":      out.Situation,
		"inferences":     trace,
		"confidence":     out.Confidence,
		"facts_analyzed": out.FactsAnalyzed,
	}, 0.6); err != nil {
		return out, err
	}

	f.logger.Debug("reasoning complete",
		zap.String("agent_id", agentID),
		zap.Int("facts", out.FactsAnalyzed),
		zap.Int("inferences", len(inferences)),
	)
	return out, nil
}

func (f *Framework) applyFact(fact, situation map[string]any) (domain.Inference, bool) {
	pattern, ok := fact["pattern"]
	if !ok {
		return domain.Inference{}, false
	}

	switch p := pattern.(type) {
	case string:
		prog, err := f.compile(p)
		if err != nil {
			f.logger.Debug("fact pattern rejected", zap.String("pattern", p), zap.Error(err))
			return domain.Inference{}, false
		}
		if hit, err := prog.EvalBool(situation); err != nil || !hit {
			return domain.Inference{}, false
		}
	case map[string]any:
		for k, want := range p {
			got, present := situation[k]
			if !present || !expr.Equal(got, want) {
				return domain.Inference{}, false
			}
		}
	default:
		return domain.Inference{}, false
	}

	conclusion, _ := fact["conclusion"].(string)
	if conclusion == "" {
		conclusion, _ = fact["inference"].(string)
	}
	if conclusion == "" {
		return domain.Inference{}, false
	}
	conf, ok := number(fact["confidence"])
	if !ok {
		conf = defaultFactConfidence
	}
	source, _ := fact["name"].(string)
	if source == "" {
		source = "fact"
	}
	return domain.Inference{Conclusion: conclusion, Confidence: conf, Source: source}, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
