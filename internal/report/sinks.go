package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// LogSink writes error entries as structured log records. The log name
// travels as an attribute so the aggregation system can route on it.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink builds the default sink.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

// Write implements Sink.
func (s *LogSink) Write(_ context.Context, logName string, entry Entry) error {
	s.logger.Error("error event",
		"log_name", logName,
		"message", entry.Message,
		"service", entry.Service,
		"user", entry.Context.User,
		"occurred_at", entry.OccurredAt,
	)
	return nil
}

type sesAPI interface {
	SendEmail(context.Context, *sesv2.SendEmailInput, ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSink forwards error entries as alert emails via AWS SES.
type EmailSink struct {
	client sesAPI
	from   string
	to     string
}

// NewEmailSink returns nil when the client or addresses are not
// configured, so callers can pass the result straight to NewReporter.
func NewEmailSink(client sesAPI, from, to string) *EmailSink {
	if client == nil || from == "" || to == "" {
		return nil
	}
	return &EmailSink{client: client, from: from, to: to}
}

// Write implements Sink.
func (s *EmailSink) Write(ctx context.Context, logName string, entry Entry) error {
	subject := fmt.Sprintf("[%s] error reported by %s", logName, entry.Service)
	body := fmt.Sprintf("service: %s\nuser: %s\noccurred: %s\n\n%s",
		entry.Service, entry.Context.User, entry.OccurredAt.Format("2006-01-02 15:04:05 MST"), entry.Message)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{s.to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("report: SES send failed: %w", err)
	}
	return nil
}
