package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/cache"
	"github.com/quicklearn/quicklearn/internal/explain"
	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/provider"
	"github.com/quicklearn/quicklearn/internal/queue"
	"github.com/quicklearn/quicklearn/internal/router"
	"github.com/quicklearn/quicklearn/internal/store"
	anthropicpkg "github.com/quicklearn/quicklearn/pkg/anthropic"
	"github.com/quicklearn/quicklearn/pkg/openaichat"
)

// appEnv holds the initialized backends shared by the serve and worker
// commands. Callers should defer env.Close().
type appEnv struct {
	Store   store.Store
	Cache   *cache.Cache
	Router  *router.Router
	Queue   queue.Queue
	Service *explain.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Queue != nil {
		_ = e.Queue.Close()
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, cache, model router, and queue, then builds
// the explain service on top of them. mode selects which config fields
// Validate requires.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
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

	hot, err := initCache(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rtr := initRouter(hot)
	q := initQueue()

	// A typed nil *cache.Cache must become a true nil interface so the
	// service's nil checks hold.
	var hc explain.HotCache
	if hot != nil {
		hc = hot
	}
	svc := explain.New(st, hc, rtr, q)

	return &appEnv{
		Store:   st,
		Cache:   hot,
		Router:  rtr,
		Queue:   q,
		Service: svc,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "quicklearn.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache dials Redis. A nil cache is a valid return: with no address
// configured the service runs without a hot cache.
func initCache(ctx context.Context) (*cache.Cache, error) {
	if cfg.Redis.Addr == "" {
		zap.L().Warn("redis not configured, hot cache disabled")
		return nil, nil
	}

	return cache.New(ctx, cache.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		VerifiedTTL: time.Duration(cfg.Redis.VerifiedTTLSecs) * time.Second,
		DefaultTTL:  time.Duration(cfg.Redis.DefaultTTLSecs) * time.Second,
	})
}

// initRouter builds the fallback chain and one adapter per configured
// provider family. Models whose provider has no API key are dropped from
// the chain rather than left to fail at call time.
func initRouter(hot *cache.Cache) *router.Router {
	adapters := make(map[model.Provider]provider.Adapter)

	if cfg.Groq.Key != "" {
		client := openaichat.NewClient(cfg.Groq.Key, openaichat.WithBaseURL(cfg.Groq.BaseURL))
		adapters[model.ProviderGroq] = provider.NewGroqAdapter(client)
	}
	if cfg.OpenAI.Key != "" {
		client := openaichat.NewClient(cfg.OpenAI.Key, openaichat.WithBaseURL(cfg.OpenAI.BaseURL))
		adapters[model.ProviderOpenAI] = provider.NewOpenAIAdapter(client)
	}
	if cfg.Anthropic.Key != "" {
		adapters[model.ProviderAnthropic] = provider.NewAnthropicAdapter(anthropicpkg.NewClient(cfg.Anthropic.Key))
	}

	chain := make([]model.ModelConfig, 0, len(router.DefaultChain()))
	for _, mc := range router.DefaultChain() {
		if _, ok := adapters[mc.Provider]; ok {
			chain = append(chain, mc)
		}
	}
	zap.L().Info("model chain built",
		zap.Int("models", len(chain)),
		zap.Int("providers", len(adapters)),
	)

	var usage router.UsageRecorder
	if hot != nil {
		usage = hot
	}

	return router.New(chain, adapters, router.NewQuarantine(), usage, cfg.Router.VerificationThreshold)
}

// initQueue connects to NATS when configured, otherwise falls back to the
// in-process queue so single-binary deployments still verify.
func initQueue() queue.Queue {
	if cfg.Nats.URL == "" {
		zap.L().Warn("nats not configured, using in-process verification queue")
		return queue.NewInline(0)
	}

	q, err := queue.NewNats(cfg.Nats)
	if err != nil {
		zap.L().Warn("nats connect failed, using in-process verification queue", zap.Error(err))
		return queue.NewInline(0)
	}
	return q
}
