// Command editpipelined runs the video-edit orchestration service: the HTTP
// API (internal/api/httpapi), the VideoEditWorkflow registered against
// either a Temporal-backed durable engine or the in-process fallback
// engine, and a periodic artifact-retention sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	goatemporal "go.temporal.io/sdk/client"
	"goa.design/clue/log"

	"github.com/clipforge/editpipeline/internal/api/httpapi"
	"github.com/clipforge/editpipeline/internal/callback"
	"github.com/clipforge/editpipeline/internal/config"
	"github.com/clipforge/editpipeline/internal/engine/inmem"
	"github.com/clipforge/editpipeline/internal/engine/temporal"
	"github.com/clipforge/editpipeline/internal/executor"
	"github.com/clipforge/editpipeline/internal/fallbacklock"
	"github.com/clipforge/editpipeline/internal/health"
	"github.com/clipforge/editpipeline/internal/knowledge"
	"github.com/clipforge/editpipeline/internal/modelmanager"
	"github.com/clipforge/editpipeline/internal/orchestrator"
	"github.com/clipforge/editpipeline/internal/retention"
	"github.com/clipforge/editpipeline/internal/store"
	"github.com/clipforge/editpipeline/internal/store/memory"
	"github.com/clipforge/editpipeline/internal/store/postgres"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

const retentionScanLimit = 500

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf(ctx, err, "failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		ctx = log.Context(ctx, log.WithDebug())
	}
	logger := telemetry.NewClueLogger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "failed to initialize store")
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf(ctx, err, "invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, fallback in-flight locking disabled", "error", err.Error())
			rdb = nil
		}
	}

	var slackNotifier callback.SlackNotifier
	if cfg.SlackWebhookURL != "" {
		slackNotifier = callback.NewWebhookNotifier(cfg.SlackWebhookURL)
	}
	dispatcher := callback.NewDispatcher(cfg.CallbackTimeout, cfg.CallbackMaxRetries, logger, slackNotifier)

	exec := buildExecutor(cfg, logger)

	var rewriter knowledge.SummaryRewriter
	if cfg.AnthropicAPIKey != "" {
		rewriter = knowledge.NewAnthropicRewriter(cfg.AnthropicAPIKey, "claude-sonnet-4-5")
	}
	kb := knowledge.NewStore(nil, st, rewriter)

	fallbackEngine := inmem.New(inmem.Options{Logger: logger})

	var durableEngine *temporal.Engine
	if cfg.TemporalHostPort != "" {
		durableEngine, err = temporal.New(temporal.Options{
			ClientOptions: &goatemporal.Options{HostPort: cfg.TemporalHostPort, Namespace: cfg.TemporalNamespace},
			WorkerOptions: temporal.WorkerOptions{TaskQueue: cfg.TemporalTaskQueue},
			Logger:        logger,
		})
		if err != nil {
			logger.Warn(ctx, "temporal engine unavailable, relying on fallback orchestrator", "error", err.Error())
			durableEngine = nil
		}
	}

	svc := &orchestrator.Service{
		Store:                      st,
		Knowledge:                  kb,
		Executor:                   exec,
		Callback:                   dispatcher,
		Fallback:                   fallbackEngine,
		FallbackLock:               fallbacklock.New(rdb, 2*time.Hour),
		DurableTaskQueue:           cfg.TemporalTaskQueue,
		MaxIterations:              cfg.MaxIterations,
		QAThreshold:                cfg.QAThreshold,
		QARandomReviewRatio:        cfg.QARandomReviewRatio,
		DefaultModelBundle:         modelmanager.DefaultModelBundle(cfg.ModelRuntimeMode),
		SafetyOverrideAllowRules:   cfg.SafetyOverrideAllowRules,
		HighRiskReviewKeywords:     cfg.HighRiskReviewKeywords,
		EnableFallbackOrchestrator: cfg.EnableFallbackOrchestrator,
		Logger:                     logger,
	}
	if durableEngine != nil {
		svc.Durable = durableEngine
	}

	if err := svc.RegisterWith(ctx, fallbackEngine, cfg.TemporalTaskQueue); err != nil {
		log.Fatalf(ctx, err, "failed to register workflow on fallback engine")
	}
	if durableEngine != nil {
		if err := svc.RegisterWith(ctx, durableEngine, cfg.TemporalTaskQueue); err != nil {
			log.Fatalf(ctx, err, "failed to register workflow on durable engine")
		}
		defer durableEngine.Close()
	}

	healthChecker := health.Checker{Database: st, KnowledgeBase: pingerFunc(func(context.Context) error { return nil })}
	if durableEngine != nil {
		healthChecker.Engine = durableEngine
	}

	server, err := httpapi.New(httpapi.Server{
		Orchestrator:   svc,
		Store:          st,
		Knowledge:      kb,
		Health:         healthChecker,
		Config:         cfg,
		DeviceDetector: modelmanager.NoGPUDetector{},
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf(ctx, err, "failed to build HTTP server")
	}

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopRetention := startRetentionSweep(ctx, st, cfg, logger)
	defer stopRetention()

	go func() {
		logger.Info(ctx, "starting editpipelined", "addr", cfg.ListenAddr, "model_runtime_mode", string(cfg.ModelRuntimeMode))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf(ctx, err, "http server error")
		}
	}()

	<-ctx.Done()
	logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http shutdown error", "error", err.Error())
	}
}

// buildStore constructs the configured Store (Postgres in production,
// memory when DATABASE_URL points at the in-process sentinel used by local
// tooling) and returns a close function callers defer unconditionally.
func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" || cfg.DatabaseURL == "memory://" {
		return memory.New(), func() {}, nil
	}
	if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func buildExecutor(cfg config.Config, logger telemetry.Logger) executor.EditExecutor {
	if cfg.ModelRuntimeMode == config.RuntimeModeAPI {
		return executor.NewRemoteExecutor(
			cfg.ModelAPIBaseURL, cfg.ModelAPIKey, cfg.RemoteModelTimeout, cfg.RemoteModelMaxRetries,
			cfg.AllowAPIStubFallback, 5, 10, logger,
		)
	}
	return executor.NewLocalExecutor(executor.AlwaysInstalled{})
}

// startRetentionSweep runs the artifact-retention sweep on a fixed cron
// schedule and returns a function to stop it during shutdown.
func startRetentionSweep(ctx context.Context, st store.Store, cfg config.Config, logger telemetry.Logger) func() {
	sweeper := retention.NewSweeper(st, cfg.RawRetentionDays, cfg.IntermediateRetentionDays, cfg.OutputRetentionDays, retentionScanLimit, logger)

	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		flagged, err := sweeper.Run(ctx)
		if err != nil {
			logger.Error(ctx, "retention sweep failed", "error", err.Error())
			return
		}
		logger.Info(ctx, "retention sweep completed", "flagged", flagged)
	})
	if err != nil {
		logger.Error(ctx, "failed to schedule retention sweep", "error", err.Error())
		return func() {}
	}
	c.Start()
	return func() { <-c.Stop().Done() }
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
