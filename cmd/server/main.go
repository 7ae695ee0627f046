package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"veridoc/internal/biometric"
	"veridoc/internal/classifier"
	"veridoc/internal/decision"
	decisionmetrics "veridoc/internal/decision/metrics"
	"veridoc/internal/extraction"
	"veridoc/internal/platform/config"
	"veridoc/internal/platform/httpserver"
	"veridoc/internal/platform/logger"
	platformmetrics "veridoc/internal/platform/metrics"
	platformredis "veridoc/internal/platform/redis"
	"veridoc/internal/quality"
	"veridoc/internal/storage"
	httptransport "veridoc/internal/transport/http"
	"veridoc/internal/verification/handler"
	verifmetrics "veridoc/internal/verification/metrics"
	"veridoc/internal/verification/service"
	"veridoc/internal/verification/store"
	"veridoc/internal/webhook"
	webhookmetrics "veridoc/internal/webhook/metrics"
	"veridoc/pkg/email"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/middleware/auth"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	db, err := openPostgres(cfg.Server.PostgresDSN)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}
	stores, webhookEvents := buildStores(log, db)

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	blobs := storage.NewMemoryStore()
	signer := storage.NewSigner([]byte(cfg.Storage.DownloadSecret), cfg.Storage.DownloadBaseURL, cfg.Storage.DownloadTTL)

	auditor, closeAudit, err := buildAuditor(log, cfg.Kafka)
	if err != nil {
		log.Error("audit pipeline setup failed", "error", err)
		os.Exit(1)
	}
	defer closeAudit()

	dispatcher := webhook.New(webhookEvents, []byte(cfg.Webhook.SigningSecret),
		webhook.WithLogger(log),
		webhook.WithMetrics(webhookmetrics.New()),
	)
	sweeper := webhook.NewSweeper(dispatcher,
		webhook.WithSweepInterval(cfg.Webhook.SweepInterval),
		webhook.WithSweepLogger(log),
	)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithWebhooks(dispatcher),
		service.WithEmails(email.NewLogNotifier(log)),
		service.WithAuditor(auditor),
		service.WithMetrics(verifmetrics.New()),
	}
	if rdb != nil {
		svcOpts = append(svcOpts, service.WithResultCache(
			service.NewRedisResultCache(rdb.Client, service.DefaultResultTTL)))
	} else {
		svcOpts = append(svcOpts, service.WithResultCache(
			service.NewMemoryResultCache(service.DefaultResultTTL)))
	}
	svc := service.New(stores, buildPipeline(log, blobs), blobs, svcOpts...)

	validator := auth.NewValidator(cfg.Server.JWTSigningKey)
	h := handler.New(svc, blobs, signer, validator, cfg.Server.AdminToken, log)

	router := httptransport.NewRouter(h, httptransport.Dependencies{
		Logger:  log,
		Metrics: platformmetrics.New(),
		DB:      db,
		Redis:   rdb,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting veridoc", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// openPostgres connects and applies the schema. A missing DSN is allowed in
// development; the server falls back to in-memory stores.
func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(store.Schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildStores(log *slog.Logger, db *sql.DB) (service.Stores, store.WebhookEventStore) {
	if db == nil {
		log.Warn("no postgres DSN configured, using in-memory stores")
		return service.Stores{
			Verifications: store.NewMemoryVerificationStore(),
			Documents:     store.NewMemoryDocumentStore(),
			Results:       store.NewMemoryResultStore(),
		}, store.NewMemoryWebhookEventStore()
	}
	return service.Stores{
		Verifications: store.NewPostgresVerificationStore(db),
		Documents:     store.NewPostgresDocumentStore(db),
		Results:       store.NewPostgresResultStore(db),
	}, store.NewPostgresWebhookEventStore(db)
}

func buildPipeline(log *slog.Logger, blobs storage.Store) service.Pipeline {
	biometrics := biometric.New(biometric.WithLogger(log))
	return service.Pipeline{
		Quality:    quality.New(quality.DefaultConfig()),
		Classifier: classifier.New(classifier.DefaultConfig(), classifier.WithLogger(log)),
		Extractor:  extraction.New(extraction.WithLogger(log)),
		Biometrics: biometrics,
		Decisions: decision.New(storage.NewFetcher(blobs), biometrics,
			decision.WithLogger(log),
			decision.WithMetrics(decisionmetrics.New()),
		),
	}
}

// buildAuditor assembles the audit publisher, attaching the Kafka sink when
// brokers are configured. The returned closer drains the publisher.
func buildAuditor(log *slog.Logger, cfg config.KafkaConfig) (*audit.Publisher, func(), error) {
	opts := []audit.PublisherOption{audit.WithLogger(log)}
	var sink *audit.KafkaSink
	if len(cfg.Brokers) > 0 {
		var err error
		sink, err = audit.NewKafkaSink(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, audit.WithSink(sink))
	}
	publisher := audit.NewPublisher(audit.NewMemoryStore(), opts...)
	closer := func() {
		publisher.Close()
		if sink != nil {
			sink.Close()
		}
	}
	return publisher, closer, nil
}
