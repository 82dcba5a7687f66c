package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"basegraph.app/storepilot/common/id"
	"basegraph.app/storepilot/common/llm"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/commerce"
	"basegraph.app/storepilot/internal/engine"
	"basegraph.app/storepilot/internal/events"
	"basegraph.app/storepilot/internal/executor"
	"basegraph.app/storepilot/internal/governor"
	"basegraph.app/storepilot/internal/planner"
	"basegraph.app/storepilot/internal/snapshot"
	"basegraph.app/storepilot/internal/store"
)

// App is the wired decision cycle: store, stages and engine. The caller
// starts Engine.Run and must Close the App.
type App struct {
	Engine  *engine.Engine
	Planner *planner.Proposer
	Store   store.CycleStore
	// Events is nil when Redis is not configured.
	Events *events.Reader

	// publisher owns the Redis client when there is one.
	publisher events.Publisher
}

// New builds an App from cfg. nodeID seeds the snapshot id generator and
// must differ between processes sharing a store.
func New(ctx context.Context, cfg config.Config, nodeID int64) (*App, error) {
	if err := id.Init(nodeID); err != nil {
		return nil, fmt.Errorf("initializing id generator: %w", err)
	}

	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}
	slog.InfoContext(ctx, "cycle store ready", "backend", cfg.Storage.Backend)

	a := &App{Store: st, publisher: events.NewNoop()}

	var ledger executor.Ledger = executor.NewMemoryLedger()
	if cfg.Redis.Enabled() {
		client, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.publisher = events.NewRedisPublisher(client, cfg.Redis.EventsStream, cfg.Redis.StreamMaxLen, slog.Default())
		a.Events = events.NewReader(client, cfg.Redis.EventsStream)
		ledger = executor.NewRedisLedger(client, cfg.Executor.IdempotencyTTL)
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.EventsStream)
	} else {
		slog.InfoContext(ctx, "redis not configured; events disabled and idempotency ledger is in-memory")
	}

	catalog, err := commerce.NewShopify(cfg.Commerce)
	if err != nil {
		if !errors.Is(err, commerce.ErrNotConfigured) {
			_ = a.Close()
			return nil, fmt.Errorf("creating commerce client: %w", err)
		}
		slog.WarnContext(ctx, "commerce not configured; snapshots will be degraded and mutations will fail")
		catalog = commerce.Unconfigured{}
	}

	var gen llm.Generator
	if cfg.PlannerLLM.Enabled() {
		gen, err = llm.New(ctx, llm.Config{
			Provider:  cfg.PlannerLLM.Provider,
			APIKey:    cfg.PlannerLLM.APIKey,
			BaseURL:   cfg.PlannerLLM.BaseURL,
			Model:     cfg.PlannerLLM.Model,
			MaxTokens: cfg.PlannerLLM.MaxTokens,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("creating planner provider: %w", err)
		}
	} else {
		slog.InfoContext(ctx, "planner provider not configured; using fallback plans")
	}

	a.Planner = planner.New(gen, planner.NewProviderState(), planner.Options{
		Provider:    cfg.PlannerLLM.Provider,
		Model:       cfg.PlannerLLM.Model,
		APIKey:      cfg.PlannerLLM.APIKey,
		MaxTokens:   cfg.PlannerLLM.MaxTokens,
		Constraints: cfg.Constraints,
	})

	a.Engine = engine.New(engine.Deps{
		Store:       st,
		Snapshotter: snapshot.NewProvider(catalog, cfg.Metrics),
		Proposer:    a.Planner,
		Governor:    governor.New(cfg.Constraints),
		Executor:    executor.New(catalog, ledger, cfg.Executor, cfg.Constraints),
		Events:      a.publisher,
	}, engine.Config{
		QueueSize:     cfg.Engine.QueueSize,
		CycleTimeout:  cfg.Engine.CycleTimeout,
		RecentReports: cfg.Engine.RecentReports,
	})

	return a, nil
}

// Close stops the engine and releases connections.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Stop()
	}
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}
