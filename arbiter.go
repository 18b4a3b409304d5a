package arbiter

import (
	"context"
	"net/http"

	"github.com/aretw0/arbiter/internal/runtime"
	"github.com/aretw0/arbiter/pkg/actions"
	"github.com/aretw0/arbiter/pkg/adapters/memory"
	"github.com/aretw0/arbiter/pkg/decision"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/expr"
	"github.com/aretw0/arbiter/pkg/persistence/middleware"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/aretw0/arbiter/pkg/registry"
	"github.com/aretw0/arbiter/pkg/session"
	"github.com/aretw0/arbiter/pkg/verify"
	"go.uber.org/zap"
)

// Arbiter is the high-level entry point for the library.
// It bundles a workflow engine and a decision framework sharing one State Store,
// one action registry and one expression cache.
type Arbiter struct {
	*runtime.Engine
	*decision.Framework

	store    ports.StateStore
	cache    *expr.Cache
	logger   *zap.Logger
	hooks    domain.LifecycleHooks
	verifier ports.ContentVerifier
	client   *http.Client
	sessions *session.Manager
	mws      []middleware.Middleware
	maxSteps int
	noBuilt  bool
}

// Option defines a functional option for configuring the Arbiter.
type Option func(*Arbiter)

// WithStore sets the State Store. Defaults to an in-memory store.
func WithStore(store ports.StateStore) Option {
	return func(a *Arbiter) {
		a.store = store
	}
}

// WithStoreMiddleware wraps the State Store. The first middleware is outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(a *Arbiter) {
		a.mws = append(a.mws, mws...)
	}
}

// WithLogger sets a structured logger for every component.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Arbiter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Arbiter) {
		a.hooks = a.hooks.Merge(hooks)
	}
}

// WithVerifier replaces the heuristic content verifier used by verify_content.
func WithVerifier(v ports.ContentVerifier) Option {
	return func(a *Arbiter) {
		a.verifier = v
	}
}

// WithHTTPClient sets the client used by call_api.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Arbiter) {
		a.client = c
	}
}

// WithSessionManager sets the per-workflow serializer, e.g. one backed by a distributed lock.
func WithSessionManager(m *session.Manager) Option {
	return func(a *Arbiter) {
		a.sessions = m
	}
}

// WithMaxPlanSteps bounds PlanActions.
func WithMaxPlanSteps(n int) Option {
	return func(a *Arbiter) {
		a.maxSteps = n
	}
}

// WithoutBuiltins leaves the registry empty.
func WithoutBuiltins() Option {
	return func(a *Arbiter) {
		a.noBuilt = true
	}
}

// New wires a State Store, an action registry with the built-in handlers,
// a workflow engine and a decision framework.
func New(opts ...Option) (*Arbiter, error) {
	a := &Arbiter{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		a.store = memory.NewStore()
	}
	a.store = middleware.Chain(a.store, a.mws...)
	if a.verifier == nil {
		a.verifier = verify.New()
	}

	cache, err := expr.NewCache(0)
	if err != nil {
		return nil, err
	}
	a.cache = cache

	fwOpts := []decision.Option{
		decision.WithLogger(a.logger.Named("decision")),
		decision.WithExpressionCache(cache),
		decision.WithLifecycleHooks(a.hooks),
	}
	if a.maxSteps > 0 {
		fwOpts = append(fwOpts, decision.WithMaxPlanSteps(a.maxSteps))
	}
	a.Framework = decision.NewFramework(a.store, fwOpts...)

	reg := registry.NewRegistry()
	if !a.noBuilt {
		actions.RegisterBuiltins(reg, actions.Deps{
			Store:      a.store,
			Verifier:   a.verifier,
			Decider:    a.Framework,
			HTTPClient: a.client,
			Cache:      cache,
			Logger:     a.logger.Named("actions"),
		})
	}

	engOpts := []runtime.Option{
		runtime.WithLogger(a.logger.Named("engine")),
		runtime.WithLifecycleHooks(a.hooks),
	}
	if a.sessions != nil {
		engOpts = append(engOpts, runtime.WithSessionManager(a.sessions))
	}
	a.Engine = runtime.NewEngine(a.store, reg, engOpts...)
	return a, nil
}

// Store returns the (middleware-wrapped) State Store.
func (a *Arbiter) Store() ports.StateStore {
	return a.store
}

// Run creates a workflow, defines its steps and executes it.
func (a *Arbiter) Run(ctx context.Context, agentID, workflowType string, cfg domain.WorkflowConfig, steps []domain.StepDefinition) (*domain.ExecutionResult, error) {
	wf, err := a.CreateWorkflow(ctx, agentID, workflowType, cfg)
	if err != nil {
		return nil, err
	}
	if err := a.DefineSteps(ctx, wf.ID, steps); err != nil {
		return nil, err
	}
	return a.ExecuteWorkflow(ctx, wf.ID)
}

// Close releases the expression cache.
func (a *Arbiter) Close() {
	a.cache.Close()
}
