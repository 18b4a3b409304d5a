package decision

import (
	"context"
	"math"

	"github.com/aretw0/arbiter/pkg/domain"
	"go.uber.org/zap"
)

// ReinforceThreshold is the reward above which an experience becomes knowledge.
const ReinforceThreshold = 0.5

// Learn records an experience as an episodic memory with importance |reward|.
// Rewards above ReinforceThreshold also reinforce a semantic knowledge entry
// for the action. There is no decay and no negative reinforcement.
func (f *Framework) Learn(ctx context.Context, agentID string, exp domain.Experience) (*domain.LearnResult, error) {
	mem, err := f.remember(ctx, agentID, domain.MemoryEpisodic, "experience:"+exp.Action, map[string]any{
		"action":  exp.Action,
		"context": domain.CloneMap(exp.Context),
		"outcome": exp.Outcome,
		"reward":  exp.Reward,
	}, math.Abs(exp.Reward))
	if err != nil {
		return nil, err
	}
	res := &domain.LearnResult{ExperienceID: mem.ID}
	if exp.Reward <= ReinforceThreshold {
		return res, nil
	}

	key := "knowledge:" + exp.Action
	prior, err := f.store.SearchMemories(ctx, agentID, key)
	if err != nil {
		return res, &domain.StoreError{Op: "SearchMemories", Err: err}
	}
	count := 1
	for _, m := range prior {
		// Prefix search also matches longer action names.
		if m.Key != key {
			continue
		}
		count = reinforcements(m.Content["reinforcements"]) + 1
		break
	}

	knowledge, err := f.remember(ctx, agentID, domain.MemorySemantic, key, map[string]any{
		"action":         exp.Action,
		"effective":      true,
		"context":        domain.CloneMap(exp.Context),
		"reward":         exp.Reward,
		"reinforcements": count,
	}, math.Min(exp.Reward, 1))
	if err != nil {
		return res, err
	}
	res.KnowledgeID = knowledge.ID
	res.Reinforced = true

	f.logger.Debug("knowledge reinforced",
		zap.String("agent_id", agentID),
		zap.String("action", exp.Action),
		zap.Int("reinforcements", count),
	)
	return res, nil
}

func reinforcements(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
