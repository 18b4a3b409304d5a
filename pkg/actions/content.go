package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/arbiter/pkg/domain"
)

type verifyConfig struct {
	Content     any            `mapstructure:"content"`
	ContentType string         `mapstructure:"content_type"`
	Metadata    map[string]any `mapstructure:"metadata"`
}

func (h *handlers) verifyContent(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	if h.deps.Verifier == nil {
		return nil, fmt.Errorf("%s: verifier: %w", VerifyContent, ErrNotConfigured)
	}
	var cfg verifyConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Content == nil {
		return nil, fmt.Errorf("%s: content is required", VerifyContent)
	}

	var payload []byte
	switch c := cfg.Content.(type) {
	case string:
		payload = []byte(c)
	case []byte:
		payload = c
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", VerifyContent, err)
		}
		payload = data
		if cfg.ContentType == "" {
			cfg.ContentType = "application/json"
		}
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/plain"
	}

	res, err := h.deps.Verifier.Verify(ctx, payload, cfg.ContentType, cfg.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"authentic":  res.Authentic,
		"confidence": res.Confidence,
		"details":    res.Details,
	}, nil
}

type profileConfig struct {
	AgentID    string         `mapstructure:"agent_id"`
	EntityID   string         `mapstructure:"entity_id"`
	Reputation *float64       `mapstructure:"reputation"`
	Attributes map[string]any `mapstructure:"attributes"`
}

// defaultReputation is used when neither the config nor the context supplies one.
const defaultReputation = 0.5

func (h *handlers) createProfile(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	if h.deps.Store == nil {
		return nil, fmt.Errorf("%s: store: %w", CreateRUVProfile, ErrNotConfigured)
	}
	var cfg profileConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.EntityID == "" {
		return nil, fmt.Errorf("%s: entity_id is required", CreateRUVProfile)
	}
	agentID, err := agentFor(ctx, cfg.AgentID)
	if err != nil {
		return nil, err
	}

	verifications := verificationsIn(wctx)
	reputation := defaultReputation
	switch {
	case cfg.Reputation != nil:
		reputation = *cfg.Reputation
	case len(verifications) > 0:
		sum := 0.0
		for _, c := range verifications {
			sum += c
		}
		reputation = sum / float64(len(verifications))
	}
	reputation = max(0, min(1, reputation))

	content := map[string]any{
		"entity_id":     cfg.EntityID,
		"reputation":    reputation,
		"verifications": len(verifications),
	}
	if len(cfg.Attributes) > 0 {
		content["attributes"] = cfg.Attributes
	}

	mem, err := h.deps.Store.StoreMemory(ctx, agentID, domain.MemoryLongTerm, "ruv_profile:"+cfg.EntityID, content, domain.MemoryOptions{
		Importance: reputation,
	})
	if err != nil {
		return nil, err
	}
	content["profile_id"] = mem.ID
	return content, nil
}

// verificationsIn returns the confidence of every verify_content-shaped result
// in the workflow context, ordered by context key.
func verificationsIn(wctx map[string]any) []float64 {
	keys := make([]string, 0, len(wctx))
	for k := range wctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []float64
	for _, k := range keys {
		res, ok := wctx[k].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := res["authentic"].(bool); !ok {
			continue
		}
		if c, ok := res["confidence"].(float64); ok {
			out = append(out, c)
		}
	}
	return out
}
