package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/report-assistant/internal/config"
	"github.com/jwalitptl/report-assistant/internal/repository/postgres"
	"github.com/jwalitptl/report-assistant/pkg/logger"
	"github.com/jwalitptl/report-assistant/pkg/messaging/redis"
	"github.com/jwalitptl/report-assistant/pkg/metrics"
	"github.com/jwalitptl/report-assistant/pkg/worker"
)

const healthAddr = ":8081"

func setupHealthCheck(ready func(ctx context.Context) error, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: healthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"worker_id": workerID()})
	log.Logger = *lg.Zerolog()

	if cfg.Database.Driver != config.DriverPostgres {
		lg.Fatal(fmt.Errorf("driver %q", cfg.Database.Driver), "The outbox worker requires the postgres driver")
	}
	if cfg.Redis.URL == "" {
		lg.Fatal(errors.New("redis.url is empty"), "The outbox worker requires Redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	client, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		lg.Fatal(err, "Failed to connect to Redis")
	}
	broker := redis.NewRedisBroker(client, lg)
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
		},
		lg,
		metrics.NewMetrics("outbox_processor", prometheus.DefaultRegisterer),
	)
	if err != nil {
		lg.Fatal(err, "Failed to create outbox processor")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, lg)

	healthSrv := setupHealthCheck(func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return client.Ping(ctx).Err()
	}, lg)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	lg.Info("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "Health check server forced to shutdown")
	}
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("worker-%s-%d", hostname, time.Now().UnixNano())
}
