package main

import (
	"fmt"
	"time"

	"github.com/aretw0/arbiter"
	"github.com/aretw0/arbiter/internal/config"
	"github.com/aretw0/arbiter/pkg/adapters/file"
	"github.com/aretw0/arbiter/pkg/adapters/memory"
	"github.com/aretw0/arbiter/pkg/adapters/redis"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/persistence/middleware"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/aretw0/arbiter/pkg/session"
	"go.uber.org/zap"
)

const retryInterval = 50 * time.Millisecond

// newStore builds the configured backend. The returned func releases it.
func newStore(cfg *config.Config, logger *zap.Logger) (ports.StateStore, *session.Manager, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil, func() {}, nil
	case config.StoreFile:
		return file.New(cfg.DataDir), nil, func() {}, nil
	case config.StoreRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithPrefix(cfg.RedisPrefix),
			redis.WithTTL(cfg.RedisTTL),
		)
		closeFn := func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close redis store", zap.Error(err))
			}
		}
		if !cfg.DistributedLock {
			return store, nil, closeFn, nil
		}
		sessions := session.NewManager(
			session.WithLocker(redis.NewLocker(store.Client(), cfg.RedisPrefix)),
			session.WithLogger(logger.Named("session")),
		)
		return store, sessions, closeFn, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store type %q", cfg.Store)
}

// newArbiter wires the configured store, middleware and hooks into an Arbiter.
func (c *cli) newArbiter(hooks ...domain.LifecycleHooks) (*arbiter.Arbiter, func(), error) {
	store, sessions, closeStore, err := newStore(c.cfg, c.logger)
	if err != nil {
		return nil, nil, err
	}

	mws := []middleware.Middleware{middleware.NewLoggingMiddleware(c.logger)}
	if c.cfg.StoreRetries > 0 {
		mws = append(mws, middleware.NewRetryMiddleware(c.cfg.StoreRetries, retryInterval))
	}
	opts := []arbiter.Option{
		arbiter.WithStore(store),
		arbiter.WithStoreMiddleware(mws...),
		arbiter.WithLogger(c.logger),
		arbiter.WithMaxPlanSteps(c.cfg.PlanMaxSteps),
	}
	if sessions != nil {
		opts = append(opts, arbiter.WithSessionManager(sessions))
	}
	for _, h := range hooks {
		opts = append(opts, arbiter.WithLifecycleHooks(h))
	}

	arb, err := arbiter.New(opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return arb, func() {
		arb.Close()
		closeStore()
		_ = c.logger.Sync()
	}, nil
}
