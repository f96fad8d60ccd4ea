package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vibescan/api/internal/app"
	"github.com/vibescan/api/internal/app/enrich"
	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/billing"
	httpserver "github.com/vibescan/api/internal/infra/http"
	"github.com/vibescan/api/internal/infra/http/handler"
	"github.com/vibescan/api/internal/infra/llm"
	"github.com/vibescan/api/internal/infra/postgres"
	"github.com/vibescan/api/internal/infra/redis"
	"github.com/vibescan/api/internal/infra/scanner"
	"github.com/vibescan/api/internal/infra/storage"
	"github.com/vibescan/api/internal/infra/websocket"
	"github.com/vibescan/api/pkg/logger"
	"github.com/vibescan/api/pkg/migrations"
	"github.com/vibescan/api/pkg/validator"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "version", version)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	if err := migrations.NewRunner(db.DB).Up(ctx); err != nil {
		log.Error("failed to run migrations", "error", err)
		return 1
	}
	log.Info("migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(&cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(redisClient, "redis", log)
	} else {
		log.Info("redis not configured, pattern cache disabled")
	}

	// ==========================================================================
	// Repositories
	// ==========================================================================
	scanRepo := postgres.NewScanRepository(db)
	findingRepo := postgres.NewFindingRepository(db)
	creditRepo := postgres.NewCreditRepository(db)
	feedbackRepo := postgres.NewFeedbackRepository(db)
	patternRepo := postgres.NewPatternRepository(db)
	patternCache := redis.NewPatternCache(redisClient, patternRepo, cfg.Redis.PatternTTL, log)

	// ==========================================================================
	// Enrichment
	// ==========================================================================
	var provider llm.Provider
	if cfg.Enrichment.IsConfigured() {
		provider, err = llm.NewProviderFromConfig(cfg.Enrichment)
		if err != nil {
			log.Error("failed to initialize model provider", "error", err)
			return 1
		}
		log.Info("model provider initialized", "provider", provider.Name())
	} else {
		log.Warn("no model provider configured, enrichment falls back to rule summaries")
	}
	enricher := enrich.New(provider, cfg.Enrichment, log)

	// ==========================================================================
	// Scanner & Storage
	// ==========================================================================
	var runner scanner.Runner
	switch cfg.Scanner.Mode {
	case "remote":
		runner = scanner.NewRemoteClient(cfg.Scanner, log)
		log.Info("using remote scanner", "url", cfg.Scanner.RemoteURL)
	default:
		runner = scanner.NewLocalRunner(cfg.Scanner, log)
		log.Info("using local scanner")
	}

	archiveStore, err := storage.NewArchiveStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to initialize archive store", "error", err)
		return 1
	}

	billingClient := billing.NewClient(cfg.Billing, log)
	if !billingClient.Configured() {
		log.Warn("billing not configured, credit purchases disabled")
	}

	// ==========================================================================
	// WebSocket Hub
	// ==========================================================================
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	hub := websocket.NewHub(log)
	go hub.Run(hubCtx)

	// ==========================================================================
	// Services & Handlers
	// ==========================================================================
	scanService := app.NewScanService(scanRepo, findingRepo, patternCache, creditRepo,
		runner, enricher, archiveStore, hub, cfg.Scanner, log)
	findingService := app.NewFindingService(scanRepo, findingRepo, feedbackRepo, log)
	creditService := app.NewCreditService(creditRepo, billingClient, cfg.Billing, log)

	v := validator.New()
	handlers := httpserver.Handlers{
		Scan:    handler.NewScanHandler(scanService, findingService, v, log),
		Finding: handler.NewFindingHandler(findingService, v, log),
		Credit:  handler.NewCreditHandler(creditService, v, log),
		Webhook: handler.NewWebhookHandler(billingClient, creditService, log),
		WS:      handler.NewWSHandler(hub, findingService, cfg.CORS.AllowedOrigins, log),
		Health:  handler.NewHealthHandler(db, version),
	}

	server := httpserver.NewServer(cfg, handlers, log)

	// ==========================================================================
	// Background Jobs
	// ==========================================================================
	jobs := cron.New()
	registerJobs(jobs, cfg, patternCache, log)
	jobs.Start()
	defer jobs.Stop()

	// ==========================================================================
	// Start & Graceful Shutdown
	// ==========================================================================
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		hubCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func registerJobs(jobs *cron.Cron, cfg *config.Config, patterns *redis.PatternCache, log *logger.Logger) {
	if spec := cfg.Cleanup.WorkdirSweepSpec; spec != "" {
		sweeper := scanner.NewSweeper(cfg.Scanner.WorkRoot, cfg.Cleanup.WorkdirMaxAge, log)
		if _, err := jobs.AddFunc(spec, sweeper.Sweep); err != nil {
			log.Error("failed to schedule workdir sweep", "error", err, "spec", spec)
		}
	}

	if spec := cfg.Cleanup.PatternRefreshSpec; spec != "" {
		if _, err := jobs.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
			defer cancel()
			if err := patterns.Invalidate(ctx); err != nil {
				log.Warn("pattern cache refresh failed", "error", err)
			}
		}); err != nil {
			log.Error("failed to schedule pattern refresh", "error", err, "spec", spec)
		}
	}
}

func initLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsProduction() {
		return logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: "json",
			Output: os.Stdout,
		})
	}
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
