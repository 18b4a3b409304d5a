package actions

import (
	"context"
	"time"
)

const defaultWait = time.Second

type waitConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

// wait sleeps for the configured duration or until ctx is cancelled.
func (h *handlers) wait(ctx context.Context, wctx map[string]any, config map[string]any) (any, error) {
	cfg := waitConfig{Duration: defaultWait}
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(cfg.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return map[string]any{"waited": cfg.Duration.String()}, nil
}
