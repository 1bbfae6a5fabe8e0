package main

import (
	"context"
	"os"
	"strings"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/cchristou3/cyparking-cloud/cmd/mainconfig"
	appconfig "github.com/cchristou3/cyparking-cloud/internal/config"
	"github.com/cchristou3/cyparking-cloud/internal/payments"
	"github.com/cchristou3/cyparking-cloud/internal/report"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// The payments lambda consumes the documents table's DynamoDB stream.
// Every INSERT into a user's payments subcollection triggers payment
// orchestration for that document.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

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
	orchestrator := payments.NewOrchestrator(documents, stripe, reporter, logger)

	lambda.Start(func(ctx context.Context, evt awsevents.DynamoDBEvent) error {
		return handle(ctx, orchestrator, logger, evt)
	})
}

type paymentProcessor interface {
	HandlePaymentRequestCreated(ctx context.Context, userID, pushID string) error
}

func handle(ctx context.Context, orchestrator paymentProcessor, logger *logging.Logger, evt awsevents.DynamoDBEvent) error {
	for _, record := range evt.Records {
		if record.EventName != "INSERT" {
			continue
		}
		collection := record.Change.Keys["collection"].String()
		pushID := record.Change.Keys["docId"].String()
		userID, ok := paymentsOwner(collection)
		if !ok || pushID == "" {
			continue
		}

		logger.Info("payment request created", "user_id", userID, "push_id", pushID)
		if err := orchestrator.HandlePaymentRequestCreated(ctx, userID, pushID); err != nil {
			// Returning the error makes the stream redeliver the whole
			// batch; orchestration is idempotent so that is safe.
			logger.Error("payment orchestration failed", "user_id", userID, "push_id", pushID, "error", err)
			return err
		}
	}
	return nil
}

// paymentsOwner extracts the user id from a payments subcollection
// name of the form stripe_customers/{userID}/payments.
func paymentsOwner(collection string) (string, bool) {
	rest, ok := strings.CutPrefix(collection, store.CollectionStripeCustomers+"/")
	if !ok {
		return "", false
	}
	userID, ok := strings.CutSuffix(rest, "/payments")
	if !ok || userID == "" || strings.Contains(userID, "/") {
		return "", false
	}
	return userID, true
}
