package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/assistant"
	"github.com/findius/findius/internal/auth"
	"github.com/findius/findius/internal/cache"
	"github.com/findius/findius/internal/community"
	"github.com/findius/findius/internal/compare"
	"github.com/findius/findius/internal/cost"
	"github.com/findius/findius/internal/llm"
	"github.com/findius/findius/internal/resilience"
	"github.com/findius/findius/internal/server"
	"github.com/findius/findius/internal/sitemap"
	"github.com/findius/findius/internal/store"
	"github.com/findius/findius/pkg/creators"
)

const defaultSQLitePath = "findius.db"

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// openStore validates the store config, connects and migrates.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	default:
		return cache.NewMemory(cfg.Cache.MaxEntries, time.Minute), nil
	}
}

func costRates() cost.Rates {
	overrides := make(cost.Rates, len(cfg.Pricing.Models))
	for name, p := range cfg.Pricing.Models {
		overrides[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return cost.DefaultRates().Merge(overrides)
}

// appEnv holds everything a command needs to talk to the store and the
// language model.
type appEnv struct {
	Store     store.Store
	Cache     cache.Cache
	LLM       llm.Client
	Breakers  *resilience.Breakers
	Costs     *cost.Calculator
	Compare   *compare.Service
	Assistant *assistant.Service
	Community *community.Service
}

// Close releases the store and cache.
func (e *appEnv) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initApp wires the services for mode ("serve" or "generate").
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Store:    st,
		Breakers: resilience.NewBreakers(resilience.BreakerFromConfig(5, 30)),
		Costs:    cost.NewCalculator(costRates()),
	}

	env.LLM, err = llm.New(ctx, cfg, env.Breakers, env.Costs)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Compare = compare.New(env.LLM, st)
	env.Community = community.New(st, cfg.Community)

	if mode != "serve" {
		return env, nil
	}

	env.Cache, err = initCache(ctx)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init cache")
	}

	search := creators.New(creators.Config{
		CredentialID:     cfg.Creators.CredentialID,
		CredentialSecret: cfg.Creators.CredentialSecret,
		PartnerTag:       cfg.Creators.PartnerTag,
		APIVersion:       cfg.Creators.APIVersion,
		TokenURL:         cfg.Creators.TokenURL,
		SearchURL:        cfg.Creators.SearchURL,
		Marketplace:      cfg.Creators.Marketplace,
		MinInterval:      time.Duration(cfg.Creators.MinIntervalMs) * time.Millisecond,
		Breaker: env.Breakers.Add("creators", resilience.BreakerFromConfig(
			cfg.Creators.Breaker.FailureThreshold, cfg.Creators.Breaker.ResetTimeoutSecs)),
	})
	if cfg.Creators.CredentialID == "" {
		zap.L().Warn("creators api credentials not set, product search will fail")
	}

	ttl := time.Duration(cfg.Cache.TTLSecs) * time.Second
	env.Assistant = assistant.New(env.LLM, search, env.Cache, ttl)
	return env, nil
}

// serverDeps exposes env to the HTTP layer.
func (e *appEnv) serverDeps() server.Deps {
	return server.Deps{
		Store:     e.Store,
		Compare:   e.Compare,
		Assistant: e.Assistant,
		Community: e.Community,
		Sitemap:   sitemap.New(cfg.Server.PublicURL, e.Store),
		Auth:      auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience),
		Breakers:  e.Breakers,
		Costs:     e.Costs,
	}
}
