package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cchristou3/cyparking-cloud/cmd/mainconfig"
	"github.com/cchristou3/cyparking-cloud/internal/accounts"
	"github.com/cchristou3/cyparking-cloud/internal/api/router"
	appconfig "github.com/cchristou3/cyparking-cloud/internal/config"
	"github.com/cchristou3/cyparking-cloud/internal/observability/metrics"
	"github.com/cchristou3/cyparking-cloud/internal/parking"
	"github.com/cchristou3/cyparking-cloud/internal/payments"
	"github.com/cchristou3/cyparking-cloud/internal/queue"
	"github.com/cchristou3/cyparking-cloud/internal/report"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting cyparking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set; every webhook delivery will be rejected")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	documents := store.NewDynamoStore(dynamoClient, cfg.DocumentsTable, logger)

	sinks := []report.Sink{report.NewLogSink(logger)}
	if emailSink := report.NewEmailSink(sesv2.NewFromConfig(awsCfg), cfg.AlertFromEmail, cfg.AlertToEmail); emailSink != nil {
		sinks = append(sinks, emailSink)
	}
	reporter, err := report.NewReporter(cfg.ErrorLogName, cfg.ServiceName, logger, sinks...)
	if err != nil {
		logger.Error("failed to build error reporter", "error", err)
		os.Exit(1)
	}

	stripe := payments.NewClient(cfg.StripeSecretKey, logger)

	var tracker payments.ProcessedTracker
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		tracker = payments.NewRedisProcessedTracker(redis.NewClient(opts), cfg.ProcessedTTL)
	}

	appMetrics := metrics.NewMetrics(nil)

	parkingService := parking.NewService(documents, reporter, cfg.SearchRadiusMeters, logger).WithMetrics(appMetrics)
	accountsService := accounts.NewService(documents, stripe, reporter, logger)
	orchestrator := payments.NewOrchestrator(documents, stripe, reporter, logger).WithMetrics(appMetrics)

	var teardownQueue queue.Queue
	if cfg.TeardownQueueURL != "" {
		teardownQueue = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TeardownQueueURL)
	}

	r := router.New(&router.Config{
		Logger:          logger,
		ParkingHandler:  parking.NewHandler(parkingService, logger),
		AccountsHandler: accounts.NewHandler(accountsService, teardownQueue, logger),
		PaymentsHandler: payments.NewHandler(documents, stripe, orchestrator, cfg.InlineOrchestration, logger),
		StripeWebhook:   payments.NewWebhookHandler(cfg.StripeWebhookSecret, documents, stripe, tracker, appMetrics, logger),
		MetricsHandler:  promhttp.Handler(),
		UserJWTSecret:   cfg.UserJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}
