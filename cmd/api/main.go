package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/report-assistant/internal/audio"
	"github.com/jwalitptl/report-assistant/internal/clients/groq"
	"github.com/jwalitptl/report-assistant/internal/clients/uplift"
	"github.com/jwalitptl/report-assistant/internal/config"
	"github.com/jwalitptl/report-assistant/internal/email"
	analysisHandler "github.com/jwalitptl/report-assistant/internal/handler/analysis"
	audioHandler "github.com/jwalitptl/report-assistant/internal/handler/audio"
	authHandler "github.com/jwalitptl/report-assistant/internal/handler/auth"
	"github.com/jwalitptl/report-assistant/internal/handler/health"
	reportHandler "github.com/jwalitptl/report-assistant/internal/handler/report"
	sessionHandler "github.com/jwalitptl/report-assistant/internal/handler/session"
	"github.com/jwalitptl/report-assistant/internal/ingest"
	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/repository"
	"github.com/jwalitptl/report-assistant/internal/repository/memory"
	"github.com/jwalitptl/report-assistant/internal/repository/postgres"
	redisRepo "github.com/jwalitptl/report-assistant/internal/repository/redis"
	"github.com/jwalitptl/report-assistant/internal/router"
	analysisService "github.com/jwalitptl/report-assistant/internal/service/analysis"
	authService "github.com/jwalitptl/report-assistant/internal/service/auth"
	eventService "github.com/jwalitptl/report-assistant/internal/service/event"
	sessionService "github.com/jwalitptl/report-assistant/internal/service/session"
	"github.com/jwalitptl/report-assistant/pkg/auth"
	"github.com/jwalitptl/report-assistant/pkg/logger"
	"github.com/jwalitptl/report-assistant/pkg/messaging"
	"github.com/jwalitptl/report-assistant/pkg/messaging/redis"
	"github.com/jwalitptl/report-assistant/pkg/metrics"
	"github.com/jwalitptl/report-assistant/pkg/security"
	"github.com/jwalitptl/report-assistant/pkg/worker"
)

const audioURLPrefix = "/api/v1/audio/"

type storage struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	outbox   repository.OutboxRepository
	usage    repository.UsageRepository
	tokens   repository.TokenRepository
	db       *sqlx.DB
	redis    *goredis.Client
	checks   map[string]health.Check
}

func (s *storage) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*storage, error) {
	s := &storage{checks: map[string]health.Check{}}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		lg.Warn("Using in-memory storage; data is lost on restart")
		s.users = memory.NewUserRepository()
		s.sessions = memory.NewSessionRepository()
		s.outbox = memory.NewOutboxRepository()
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		if cfg.Database.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				s.Close()
				return nil, err
			}
		}
		base := postgres.NewBaseRepository(db)
		s.users = postgres.NewUserRepository(base)
		s.sessions = postgres.NewSessionRepository(base)
		s.outbox = postgres.NewOutboxRepository(base)
		s.checks["database"] = db.PingContext
	}

	if cfg.Redis.URL == "" {
		s.usage = memory.NewUsageRepository()
		s.tokens = memory.NewTokenRepository()
		return s, nil
	}

	client, err := redis.NewClient(ctx, brokerConfig(cfg.Redis))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.redis = client
	s.usage = redisRepo.NewUsageRepository(client)
	s.tokens = redisRepo.NewTokenRepository(client)
	s.checks["redis"] = func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	return s, nil
}

func brokerConfig(cfg config.RedisConfig) redis.Config {
	return redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

func newEmailService(cfg config.SMTPConfig, lg *logger.Logger) email.Service {
	if cfg.Host == "" {
		return email.NewNoopService(lg)
	}
	return email.NewSMTPService(email.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func newExtractor(kind string) ingest.Extractor {
	if kind == config.ExtractorSample {
		return ingest.NewSampleExtractor()
	}
	return ingest.NewPDFExtractor()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *lg.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, lg)
	if err != nil {
		lg.Fatal(err, "failed to initialize storage")
	}
	defer store.Close()

	m := metrics.NewMetrics("report_assistant", nil)

	// External clients
	httpClient := &http.Client{}
	textClient := groq.NewClient(groq.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
		English: groq.ModelConfig(cfg.AI.English),
		Urdu:    groq.ModelConfig(cfg.AI.Urdu),
	}, httpClient)
	speechClient := uplift.NewClient(uplift.Config{
		APIKey:       cfg.Speech.APIKey,
		BaseURL:      cfg.Speech.BaseURL,
		VoiceID:      cfg.Speech.VoiceID,
		OutputFormat: cfg.Speech.OutputFormat,
		Timeout:      cfg.Speech.Timeout,
	}, httpClient)
	if cfg.AI.APIKey == "" {
		lg.Warn("GROQ_API_KEY is not set; analyses will fail")
	}
	if cfg.Speech.APIKey == "" {
		lg.Warn("UPLIFTAI_API_KEY is not set; audio will be skipped")
	}

	// Services
	events := eventService.NewEventService(store.outbox)
	audioStore := audio.NewStore(cfg.Audio.TTL)
	tracker := analysisService.NewTracker()

	authSvc := authService.NewService(
		store.users,
		store.tokens,
		auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWTExpiry()),
		security.NewBcryptHasher(0),
		newEmailService(cfg.SMTP, lg),
		lg.WithFields(map[string]interface{}{"component": "auth"}),
	)
	sessionSvc := sessionService.NewService(store.sessions, audioStore, tracker, events,
		lg.WithFields(map[string]interface{}{"component": "session"}))
	analysisSvc := analysisService.NewService(
		store.sessions,
		store.usage,
		textClient,
		speechClient,
		audioStore,
		events,
		tracker,
		m,
		lg.WithFields(map[string]interface{}{"component": "analysis"}),
		analysisService.Config{
			DailyLimit:     cfg.Analysis.DailyLimit,
			StepTimeout:    cfg.Analysis.StepTimeout,
			AudioURLPrefix: audioURLPrefix,
		},
	)
	ingestor := ingest.NewIngestor(
		newExtractor(cfg.Upload.Extractor),
		ingest.NewSelectionStore(cfg.Upload.SelectionTTL),
		ingest.Config{MaxBytes: cfg.Upload.MaxBytes, MaxPages: cfg.Upload.MaxPages},
		lg.WithFields(map[string]interface{}{"component": "ingest"}),
	)

	// Outbox publishing runs in-process; a separate worker takes over when
	// the outbox lives in Postgres.
	if cfg.Database.Driver == config.DriverMemory {
		var broker messaging.Broker = messaging.NewLogBroker(lg)
		if store.redis != nil {
			broker = redis.NewRedisBroker(store.redis, lg)
		}
		processor, err := worker.NewOutboxProcessor(store.outbox, broker, worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
		}, lg.WithFields(map[string]interface{}{"component": "outbox"}), m)
		if err != nil {
			lg.Fatal(err, "failed to create outbox processor")
		}
		go processor.Start(ctx)
		go worker.NewOutboxCleanupWorker(store.outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, lg).Start(ctx)
	}

	// Router
	rateCfg := middleware.RateLimiterConfig{
		RPS:   cfg.RateLimit.RequestsPerSecond,
		Burst: cfg.RateLimit.Burst,
	}
	sizeCfg := middleware.DefaultSizeLimitConfig()
	sizeCfg.MaxBodySize = cfg.Server.MaxBodyBytes
	sizeCfg.MaxUploadSize = cfg.Upload.MaxBytes + 1<<20

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		health.NewHandler(store.checks, nil),
		authHandler.NewHandler(authSvc),
		router.RouterConfig{
			Mode:          cfg.Server.Mode,
			RateLimit:     rateCfg,
			RateEnabled:   cfg.RateLimit.Enabled,
			CORSConfig:    middleware.CORSConfig{AllowOrigins: cfg.CORS.AllowedOrigins, AllowCredentials: true, MaxAge: 12 * time.Hour},
			SizeLimit:     sizeCfg,
			MetricsPrefix: "report_assistant_http",
		},
		sessionHandler.NewHandler(sessionSvc),
		reportHandler.NewHandler(ingestor),
		analysisHandler.NewHandler(analysisSvc, sessionSvc, ingestor),
		audioHandler.NewHandler(audioStore),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		lg.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "server forced to shutdown")
	}

	lg.Info("Server exited properly")
}
