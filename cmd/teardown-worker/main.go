package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/cchristou3/cyparking-cloud/cmd/mainconfig"
	"github.com/cchristou3/cyparking-cloud/internal/accounts"
	appconfig "github.com/cchristou3/cyparking-cloud/internal/config"
	"github.com/cchristou3/cyparking-cloud/internal/payments"
	"github.com/cchristou3/cyparking-cloud/internal/queue"
	"github.com/cchristou3/cyparking-cloud/internal/report"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/internal/worker/teardown"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.TeardownQueueURL == "" {
		logger.Error("TEARDOWN_QUEUE_URL is required")
		os.Exit(1)
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
	service := accounts.NewService(documents, stripe, reporter, logger)
	teardownQueue := queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TeardownQueueURL)

	worker := teardown.New(service, teardownQueue, cfg.WorkerMaxMessages, cfg.WorkerWaitSeconds, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down teardown worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("teardown worker stopped")
	case <-doneCtx.Done():
		logger.Error("teardown worker shutdown timed out", "error", doneCtx.Err())
	}
}
