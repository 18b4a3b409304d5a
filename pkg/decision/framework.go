package decision

import (
	"context"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/expr"
	"github.com/aretw0/arbiter/pkg/ports"
	"go.uber.org/zap"
)

const (
	// DefaultMaxPlanSteps bounds the greedy planner.
	DefaultMaxPlanSteps = 10

	// DefaultPlanSuccessRate is reported on every successful plan. It is a fixed
	// figure, not an estimate derived from history.
	DefaultPlanSuccessRate = 0.85

	// PlanSuccessKey is the memory key successful plans are stored under.
	PlanSuccessKey = "plan:success"

	pastExperienceLimit = 10
	backgroundLimit     = 20
)

// Framework evaluates rules, plans action sequences, learns from rewards and
// draws inferences. All state lives in the State Store, partitioned by agent.
type Framework struct {
	store       ports.StateStore
	cache       *expr.Cache
	logger      *zap.Logger
	hooks       domain.LifecycleHooks
	maxSteps    int
	successRate float64
	now         func() time.Time
}

// Option configures the Framework.
type Option func(*Framework)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Framework) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithExpressionCache shares a compiled-expression cache with other components.
func WithExpressionCache(c *expr.Cache) Option {
	return func(f *Framework) {
		f.cache = c
	}
}

// WithMaxPlanSteps overrides the planner iteration bound.
func WithMaxPlanSteps(n int) Option {
	return func(f *Framework) {
		if n > 0 {
			f.maxSteps = n
		}
	}
}

// WithPlanSuccessRate overrides the success rate reported on successful plans.
func WithPlanSuccessRate(rate float64) Option {
	return func(f *Framework) {
		f.successRate = rate
	}
}

// WithLifecycleHooks registers the OnDecision hook.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(f *Framework) {
		f.hooks = f.hooks.Merge(hooks)
	}
}

// NewFramework creates a decision framework backed by store.
func NewFramework(store ports.StateStore, opts ...Option) *Framework {
	f := &Framework{
		store:       store,
		logger:      zap.NewNop(),
		maxSteps:    DefaultMaxPlanSteps,
		successRate: DefaultPlanSuccessRate,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// compile goes through the shared cache when one is configured.
func (f *Framework) compile(src string) (*expr.Program, error) {
	return f.cache.Compile(src)
}

func (f *Framework) remember(ctx context.Context, agentID string, typ domain.MemoryType, key string, content map[string]any, importance float64) (*domain.Memory, error) {
	mem, err := f.store.StoreMemory(ctx, agentID, typ, key, content, domain.MemoryOptions{Importance: importance})
	if err != nil {
		f.logger.Error("failed to store memory",
			zap.String("agent_id", agentID),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, &domain.StoreError{Op: "StoreMemory", Err: err}
	}
	return mem, nil
}

func (f *Framework) recall(ctx context.Context, agentID string, typ domain.MemoryType, limit int) ([]domain.Memory, error) {
	mems, err := f.store.RetrieveMemories(ctx, agentID, typ, limit)
	if err != nil {
		f.logger.Error("failed to retrieve memories", zap.String("agent_id", agentID), zap.Error(err))
		return nil, &domain.StoreError{Op: "RetrieveMemories", Err: err}
	}
	return mems, nil
}

// memoryView flattens a memory for use inside expression contexts.
func memoryView(m domain.Memory) map[string]any {
	return map[string]any{
		"key":        m.Key,
		"content":    m.Content,
		"importance": m.Importance,
	}
}
