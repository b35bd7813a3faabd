package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-webhook/internal/analysis"
	"crm-webhook/internal/auth"
	"crm-webhook/internal/config"
	"crm-webhook/internal/httpapi"
	"crm-webhook/internal/idempotency"
	"crm-webhook/internal/leads"
	"crm-webhook/internal/metrics"
	"crm-webhook/internal/migrations"
	"crm-webhook/internal/pipeline"
	"crm-webhook/internal/queue"
	"crm-webhook/internal/reporting"
	"crm-webhook/internal/webhook"
	"crm-webhook/pkg/logger"
	"crm-webhook/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "api"})
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.MigrateOnStart {
		applied, err := migrations.Apply(rootCtx, db, migrations.Postgres)
		if err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		log.Info("migrations applied", "count", len(applied))
	}

	m := metrics.New()

	gate, q, closeBackend, err := openBackend(rootCtx, cfg)
	if err != nil {
		log.Error("pipeline backend init failed", "backend", cfg.Pipeline.Backend, "err", err)
		os.Exit(1)
	}
	defer closeBackend()

	var authManager *auth.Manager
	if cfg.Auth.Enabled() {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("JWT_SECRET not set, admin routes disabled")
	}

	// Single-process mode: the api also drains the in-memory queue.
	var inline *inlineWorkers
	if mq, ok := q.(*queue.MemoryQueue); ok {
		if err := cfg.ValidateWorker(); err != nil {
			log.Warn("worker settings incomplete, audio events will fail", "err", err)
		}
		o, err := pipeline.Build(cfg, db, m, nil)
		if err != nil {
			log.Error("pipeline init failed", "err", err)
			os.Exit(1)
		}
		if _, err := analysis.NewSQLRepo(db).ActiveAssistant(rootCtx); errors.Is(err, analysis.ErrNotFound) {
			log.Warn("no active assistant, transcripts will not be analysed")
		}
		inline = startInlineWorkers(mq, o.Handle, cfg.Pipeline.WorkerConcurrency, log.With("component", "worker"))
	}

	store := leads.NewService(db)
	r := newRouter(log, routeDeps{
		DB:      db,
		Metrics: m,
		Webhook: webhook.Handler{
			Gate:         gate,
			Queue:        q,
			FailOpen:     cfg.Pipeline.IdempotencyFailOpen,
			MaxBodyBytes: cfg.Pipeline.MaxBodyBytes,
			Metrics:      m,
		},
		API: httpapi.Handlers{
			Auth:        authManager,
			Permissions: store,
			Reporting:   reporting.NewService(reporting.NewSQLRepo(db)),
		},
		Auth: authManager,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "backend", cfg.Pipeline.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if inline != nil {
		if err := inline.Stop(shutdownCtx); err != nil {
			log.Warn("inline workers did not drain before shutdown deadline", "err", err)
		}
	}
}

// openBackend returns the dedup gate and queue for the configured backend.
func openBackend(ctx context.Context, cfg config.Config) (*idempotency.Gate, queue.Queue, func(), error) {
	if cfg.Pipeline.Backend == config.BackendMemory {
		gate := idempotency.NewGate(idempotency.NewMemoryStore(time.Minute), cfg.Pipeline.IdempotencyTTL)
		return gate, queue.NewMemoryQueue(0, 0), func() {}, nil
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	gate := idempotency.NewGate(idempotency.NewRedisStore(rdb), cfg.Pipeline.IdempotencyTTL)
	q := queue.NewRedisQueue(rdb, cfg.Pipeline.QueueKey, 0)
	return gate, q, func() { _ = rdb.Close() }, nil
}
