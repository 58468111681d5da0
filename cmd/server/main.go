package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/reportedit/internal/api"
	"github.com/dgallion1/reportedit/internal/blob"
	"github.com/dgallion1/reportedit/internal/config"
	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/generate"
	"github.com/dgallion1/reportedit/internal/interpret"
	"github.com/dgallion1/reportedit/internal/llm"
	"github.com/dgallion1/reportedit/internal/lock"
	"github.com/dgallion1/reportedit/internal/service"
	"github.com/dgallion1/reportedit/internal/store"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []io.Closer
	fail := func(msg string, err error) {
		log.Error(msg, "error", err)
		for _, c := range closers {
			c.Close()
		}
		os.Exit(1)
	}

	// Reports.
	var reports store.Store
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fail("connect database", err)
		}
		closers = append(closers, db)
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, log); err != nil {
			fail("apply migrations", err)
		}
		reports = store.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, reports are kept in memory")
		reports = store.NewMemory()
	}

	// Report files.
	var blobs blob.Store
	if cfg.MinIOEndpoint != "" {
		blobs, err = blob.NewMinIO(ctx, blob.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	} else {
		blobs, err = blob.NewFS(cfg.StorageDir)
	}
	if err != nil {
		fail("open report storage", err)
	}

	// Edit lock.
	var locks lock.Locker
	if cfg.RedisURL != "" {
		rl, err := lock.NewRedis(cfg.RedisURL, cfg.EditLockTTL, cfg.EditLockWait)
		if err != nil {
			fail("connect redis", err)
		}
		closers = append(closers, rl)
		locks = rl
	} else {
		locks = lock.NewLocal(cfg.EditLockTTL, cfg.EditLockWait)
	}

	deps := service.Deps{
		Store:    reports,
		Blobs:    blobs,
		Locks:    locks,
		Executor: editor.NewExecutor(cfg.VisibleIDPolicy, log),
		Log:      log,
	}

	// Model. Without a key the editor still serves structured edits.
	var (
		client *llm.Client
		stats  *llm.Stats
		model  llm.Completer
	)
	if cfg.AnthropicAPIKey != "" {
		stats = llm.NewStats(cfg.LLMStatsWindow)
		client = llm.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, stats)
		model = llm.NewRetrying(client, log)
		deps.Interpreter = interpret.New(model, log)
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, chat commands and report generation are disabled")
	}
	svc := service.New(deps)

	var orch *generate.Orchestrator
	if model != nil {
		orch = generate.NewOrchestrator(cfg, model, svc, log)
		orch.Start(ctx)
	}

	srv := api.NewServer(svc, orch, stats, log, cfg)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		if orch != nil {
			orch.Stop()
		}
		if client != nil {
			client.Close()
		}
		for _, c := range closers {
			c.Close()
		}
	}()

	log.Info("starting reportedit",
		"addr", cfg.ListenAddr,
		"store", storeKind(cfg),
		"visible_id_policy", cfg.VisibleIDPolicy.String(),
		"model", cfg.AnthropicAPIKey != "",
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func storeKind(cfg config.Config) string {
	if cfg.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}
