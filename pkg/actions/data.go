package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
)

type storeConfig struct {
	AgentID    string        `mapstructure:"agent_id"`
	Key        string        `mapstructure:"key"`
	Value      any           `mapstructure:"value"`
	MemoryType string        `mapstructure:"memory_type"`
	Importance *float64      `mapstructure:"importance"`
	TTL        time.Duration `mapstructure:"ttl"`
}

func (h *handlers) storeData(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	if h.deps.Store == nil {
		return nil, fmt.Errorf("%s: store: %w", StoreData, ErrNotConfigured)
	}
	var cfg storeConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("%s: key is required", StoreData)
	}
	agentID, err := agentFor(ctx, cfg.AgentID)
	if err != nil {
		return nil, err
	}

	memType := domain.MemoryShortTerm
	if cfg.MemoryType != "" {
		memType = domain.MemoryType(cfg.MemoryType)
		if !memType.Valid() {
			return nil, fmt.Errorf("%s: unknown memory_type %q", StoreData, cfg.MemoryType)
		}
	}
	opts := domain.MemoryOptions{Importance: 0.5}
	if cfg.Importance != nil {
		opts.Importance = *cfg.Importance
	}
	if cfg.TTL > 0 {
		exp := time.Now().Add(cfg.TTL)
		opts.ExpiresAt = &exp
	}

	mem, err := h.deps.Store.StoreMemory(ctx, agentID, memType, cfg.Key, map[string]any{"value": cfg.Value}, opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"stored":    true,
		"key":       cfg.Key,
		"memory_id": mem.ID,
	}, nil
}

type transformConfig struct {
	Input      any    `mapstructure:"input"`
	Expression string `mapstructure:"expression"`
}

// transformData evaluates the expression with the workflow context in scope
// and the config's input bound to "input".
func (h *handlers) transformData(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	var cfg transformConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Expression == "" {
		return nil, fmt.Errorf("%s: expression is required", TransformData)
	}

	prog, err := h.deps.Cache.Compile(cfg.Expression)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TransformData, err)
	}
	env := domain.CloneMap(wctx)
	env["input"] = cfg.Input
	out, err := prog.Eval(env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TransformData, err)
	}
	return map[string]any{"result": out}, nil
}
