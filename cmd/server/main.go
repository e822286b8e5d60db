// Command server runs the KYC verification gateway.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"kycgate/internal/audit"
	auditmem "kycgate/internal/audit/store/memory"
	auditpg "kycgate/internal/audit/store/postgres"
	kychandler "kycgate/internal/kyc/handler"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/service"
	kycmem "kycgate/internal/kyc/store/memory"
	kycpg "kycgate/internal/kyc/store/postgres"
	kycredis "kycgate/internal/kyc/store/redis"
	"kycgate/internal/notify"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/httpserver"
	"kycgate/internal/platform/kafka/producer"
	"kycgate/internal/platform/logger"
	"kycgate/internal/platform/metrics"
	platformredis "kycgate/internal/platform/redis"
	"kycgate/internal/provider"
	"kycgate/internal/provider/hyperverge"
	"kycgate/internal/provider/idfy"
	"kycgate/internal/ratelimit"
	attemptstore "kycgate/internal/ratelimit/store/attempt"
	transporthttp "kycgate/internal/transport/http"
	"kycgate/internal/webhook"
	"kycgate/pkg/platform/middleware"
	"kycgate/pkg/platform/secrets"
)

const shutdownGrace = 15 * time.Second

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := make(map[string]transporthttp.HealthChecker)

	var (
		auditStore audit.Store
		records    ports.RecordStore
		documents  ports.DocumentStore
		tiers      ports.TierConfigStore
		reviews    ports.ReviewStore
		sessions   ports.SessionStore
		attempts   ratelimit.AttemptStore
	)

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open pgx pool: %w", err)
		}
		defer pool.Close()

		auditStore = auditpg.New(db)
		records = kycpg.NewRecordStore(db)
		documents = kycpg.NewDocumentStore(db)
		tiers = kycpg.NewTierConfigStore(db)
		reviews = kycpg.NewReviewStore(db)
		attempts = attemptstore.NewPostgresStore(pool)
		health["postgres"] = db.PingContext
	} else {
		log.Warn("KYCGATE_POSTGRES_DSN not set, using in-memory stores")
		auditStore = auditmem.New()
		records = kycmem.NewRecordStore()
		documents = kycmem.NewDocumentStore()
		tiers = kycmem.NewTierConfigStore()
		reviews = kycmem.NewReviewStore()
		attempts = attemptstore.NewMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = kycredis.NewSessionStore(redisClient)
		health["redis"] = redisClient.Health
	} else {
		log.Warn("KYCGATE_REDIS_URL not set, sessions held in memory")
		sessions = kycmem.NewSessionStore()
	}

	kafkaProducer, err := producer.New(cfg.Kafka.Brokers, producer.WithLogger(log))
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	defer kafkaProducer.Close()

	publisherOpts := []audit.PublisherOption{
		audit.WithLogger(log),
		audit.WithMetrics(audit.NewMetrics()),
	}
	var outbox chan audit.Entry
	if kafkaProducer != nil {
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = kafkaProducer.EnsureTopics(topicCtx, cfg.Kafka.AuditTopic, cfg.Kafka.NotificationTopic)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure kafka topics: %w", err)
		}
		outbox = make(chan audit.Entry, 256)
		publisherOpts = append(publisherOpts, audit.WithOutbox(outbox))
	}

	publisher, err := audit.NewPublisher(auditStore, publisherOpts...)
	if err != nil {
		return fmt.Errorf("build audit publisher: %w", err)
	}
	recorder := audit.NewRecorder(publisher)

	limiter, err := ratelimit.New(attempts,
		ratelimit.Limits{HourlyCap: cfg.RateLimit.HourlyCap, DailyCap: cfg.RateLimit.DailyCap},
		ratelimit.WithLogger(log),
		ratelimit.WithAuditPublisher(recorder),
		ratelimit.WithMetrics(ratelimit.NewMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	registry := provider.NewRegistry()
	if err := registry.Register(hyperverge.New(
		cfg.Providers.HyperVergeBaseURL,
		cfg.Providers.HyperVergeAppID,
		cfg.Providers.HyperVergeAppKey,
		cfg.Providers.Timeout,
		nil,
	)); err != nil {
		return fmt.Errorf("register hyperverge: %w", err)
	}
	if err := registry.Register(idfy.New(
		cfg.Providers.IDfyBaseURL,
		cfg.Providers.IDfyAccountID,
		cfg.Providers.IDfyAPIKey,
		cfg.Providers.Timeout,
		nil,
	)); err != nil {
		return fmt.Errorf("register idfy: %w", err)
	}

	if err := service.SeedTierConfigs(ctx, tiers); err != nil {
		return fmt.Errorf("seed tier configs: %w", err)
	}

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithRateLimiter(limiter),
		service.WithReviewStore(reviews),
		service.WithMetrics(service.NewMetrics(prometheus.DefaultRegisterer)),
		service.WithSessionTTL(cfg.SessionTTL),
	}
	if kafkaProducer != nil {
		dispatcher, err := notify.NewDispatcher(kafkaProducer, cfg.Kafka.NotificationTopic, notify.WithLogger(log))
		if err != nil {
			return fmt.Errorf("build notification dispatcher: %w", err)
		}
		svcOpts = append(svcOpts, service.WithNotifier(dispatcher))
	}

	svc, err := service.New(records, documents, sessions, tiers, registry, recorder, svcOpts...)
	if err != nil {
		return fmt.Errorf("build kyc service: %w", err)
	}

	kycHandler, err := kychandler.New(svc, log)
	if err != nil {
		return fmt.Errorf("build kyc handler: %w", err)
	}

	auditService, err := audit.NewService(auditStore)
	if err != nil {
		return fmt.Errorf("build audit service: %w", err)
	}
	auditHandler, err := audit.NewHandler(auditService, publisher, log)
	if err != nil {
		return fmt.Errorf("build audit handler: %w", err)
	}

	if cfg.WebhookMasterSecret == "" {
		log.Warn("KYCGATE_WEBHOOK_MASTER_SECRET not set, provider callbacks will be rejected")
	}
	secretFor := func(providerID string) string {
		if cfg.WebhookMasterSecret == "" {
			return ""
		}
		secret, err := secrets.DeriveWebhookSecret(cfg.WebhookMasterSecret, providerID)
		if err != nil {
			log.Error("derive webhook secret", "provider", providerID, "error", err)
			return ""
		}
		return secret
	}
	webhookHandler, err := webhook.NewHandler(svc, secretFor,
		webhook.WithLogger(log),
		webhook.WithAuditPublisher(recorder),
	)
	if err != nil {
		return fmt.Errorf("build webhook handler: %w", err)
	}

	router := transporthttp.New(transporthttp.Deps{
		KYC:       kycHandler,
		Audit:     auditHandler,
		Webhook:   webhookHandler,
		Validator: middleware.NewTokenValidator(cfg.JWTSigningKey),
		Logger:    log,
		Metrics:   metrics.New(),
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if outbox != nil {
		worker := audit.NewWorker(kafkaProducer, cfg.Kafka.AuditTopic, outbox, log)
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit outbox worker: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
