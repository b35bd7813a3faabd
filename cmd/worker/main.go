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

	"crm-webhook/internal/config"
	"crm-webhook/internal/metrics"
	"crm-webhook/internal/pipeline"
	"crm-webhook/internal/queue"
	"crm-webhook/pkg/logger"
	"crm-webhook/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "worker"})
	slog.SetDefault(log)

	if cfg.Pipeline.Backend != config.BackendRedis {
		log.Error("worker needs the redis backend; the memory backend runs inside the api", "backend", cfg.Pipeline.Backend)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Error("worker config invalid", "err", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New()
	o, err := pipeline.Build(cfg, db, m, nil)
	if err != nil {
		log.Error("pipeline init failed", "err", err)
		os.Exit(1)
	}

	// Metrics and liveness only; webhooks are served by the api.
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}()

	pool := &queue.Pool{
		Queue:       queue.NewRedisQueue(rdb, cfg.Pipeline.QueueKey, 0),
		Handler:     o.Handle,
		Concurrency: cfg.Pipeline.WorkerConcurrency,
		Log:         log,
	}
	log.Info("worker started",
		"queue", cfg.Pipeline.QueueKey,
		"concurrency", cfg.Pipeline.WorkerConcurrency,
		"addr", srv.Addr,
	)
	if err := pool.Run(rootCtx); err != nil {
		log.Error("worker pool failed", "err", err)
	}
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown failed", "err", err)
	}
}
