package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/config"
	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/aretw0/caregraph/pkg/adapters/memory"
	"github.com/aretw0/caregraph/pkg/adapters/openai"
	"github.com/aretw0/caregraph/pkg/adapters/redis"
	"github.com/aretw0/caregraph/pkg/adapters/rules"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/persistence/middleware"
	"github.com/aretw0/caregraph/pkg/ports"
	"github.com/aretw0/caregraph/pkg/session"
)

// DefaultStreamDelay paces the offline responders so token streaming is visible.
const DefaultStreamDelay = 15 * time.Millisecond

// Runtime is a wired engine plus the resources it owns.
type Runtime struct {
	Engine *caregraph.Engine
	Store  ports.ThreadStore

	// Janitor reports whether idle threads must be evicted by polling.
	// Redis expires keys on its own.
	Janitor bool

	closers []func() error
}

// Close releases the backing store connections.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// BuildOptions tweaks BuildEngine beyond what the configuration carries.
type BuildOptions struct {
	Hooks       domain.LifecycleHooks
	StreamDelay time.Duration
	// Reasoner overrides the configured reasoning engine.
	Reasoner ports.ReasoningEngine
}

// BuildEngine initializes an engine with standard CLI conventions.
func BuildEngine(cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	rt := &Runtime{}

	store, locker, err := openStore(cfg.Session, rt)
	if err != nil {
		return nil, err
	}

	mws, err := storeMiddleware(cfg.Security)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Store = middleware.Chain(store, mws...)

	topology := domain.DefaultTopology()
	if cfg.Engine.Topology != "" {
		topology, err = file.LoadTopology(cfg.Engine.Topology)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("error loading topology: %w", err)
		}
	}

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithInitialResponder(topology.Hub()),
	}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	sessions := session.NewManager(rt.Store, sessionOpts...)

	reasoner := opts.Reasoner
	if reasoner == nil {
		reasoner = createReasoner(cfg, logger, opts.StreamDelay)
	}

	engine, err := caregraph.New(reasoner,
		caregraph.WithTopology(topology),
		caregraph.WithSessionManager(sessions),
		caregraph.WithDelivery(cfg.Engine.Delivery),
		caregraph.WithTurnTimeout(cfg.Engine.TurnTimeout),
		caregraph.WithLifecycleHooks(opts.Hooks),
		caregraph.WithLogger(logger),
	)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = engine
	return rt, nil
}

func openStore(cfg config.SessionConfig, rt *Runtime) (ports.ThreadStore, ports.DistributedLocker, error) {
	switch cfg.Store {
	case config.StoreRedis:
		store, err := redis.NewFromURL(cfg.RedisURL, redis.WithTTL(cfg.ThreadTTL))
		if err != nil {
			return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		return store, redis.NewLocker(store.Client(), redis.DefaultPrefix), nil
	case config.StoreFile:
		rt.Janitor = true
		return file.New(cfg.Dir), nil, nil
	case config.StoreMemory, "":
		rt.Janitor = true
		return memory.NewStore(memory.WithTTL(cfg.ThreadTTL)), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// storeMiddleware masks identifiers before sealing, so ciphertext never holds raw PII.
func storeMiddleware(cfg config.SecurityConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if cfg.RedactPII {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if cfg.EncryptionKey == "" {
		return mws, nil
	}

	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	encCfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, s := range cfg.FallbackKeys {
		k, err := middleware.ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback key #%d: %w", i+1, err)
		}
		encCfg.FallbackKeys = append(encCfg.FallbackKeys, k)
	}
	return append(mws, middleware.NewEncryptionMiddleware(encCfg)), nil
}

func createReasoner(cfg *config.Config, logger *slog.Logger, delay time.Duration) ports.ReasoningEngine {
	if cfg.OpenAI.Enabled() {
		logger.Info("Using OpenAI reasoning engine", "model", cfg.OpenAI.Model)
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, openai.WithLogger(logger))
	}
	logger.Info("Using offline rule-based responders")
	return rules.New(delay)
}
