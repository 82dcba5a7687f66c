package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"basegraph.app/storepilot/common/logger"
	"basegraph.app/storepilot/common/otel"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/app"
	"basegraph.app/storepilot/internal/http/middleware"
	httprouter "basegraph.app/storepilot/internal/http/router"
)

const (
	serverNodeID    = 1
	shutdownTimeout = 10 * time.Second
)

func main() {
	fmt.Print(banner)

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("storepilot server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the otelslog bridge needs the global logger provider in place first
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "storepilot starting",
		"env", cfg.Env,
		"otel", telemetry != nil,
		"mutations_enabled", cfg.Executor.MutationsEnabled,
		"storage", cfg.Storage.Backend)

	a, err := app.New(ctx, cfg, serverNodeID)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withCORS(cfg.CORSOrigins, setupRouter(cfg, a)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: the events stream is long-lived
		IdleTimeout: 120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// The engine outlives the signal: it stops through a.Close below, which
	// lets the running cycle finish instead of cancelling it.
	g.Go(func() error {
		return a.Engine.Run(context.WithoutCancel(gCtx))
	})

	g.Go(func() error {
		slog.InfoContext(gCtx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// stops the engine after the running cycle completes
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing app: %w", err))
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func setupRouter(cfg config.Config, a *app.App) *gin.Engine {
	router := gin.New()

	// otel span first so recovery and request logs carry the trace
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger("/health"))

	services := httprouter.Services{
		Cycles:  a.Engine,
		Planner: a.Planner,
	}
	if a.Events != nil {
		services.Events = a.Events
	}

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
	})

	return router
}

// withCORS opens the API to the configured dashboard origins. No origins
// leaves the handler untouched.
func withCORS(origins []string, h http.Handler) http.Handler {
	if len(origins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.AdminKeyHeader, "Last-Event-ID"},
	}).Handler(h)
}

const banner = `
  storepilot :: decision cycle server
  ----------------------------------
`
