package teardown

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cchristou3/cyparking-cloud/internal/accounts"
	"github.com/cchristou3/cyparking-cloud/internal/events"
	"github.com/cchristou3/cyparking-cloud/internal/queue"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// Worker polls the teardown queue and runs account deletion for each
// message. A failed teardown leaves the message in flight so SQS
// redelivers it; teardown itself is idempotent.
type Worker struct {
	service     *accounts.Service
	queue       queue.Queue
	logger      *logging.Logger
	maxMessages int
	waitSeconds int
	wg          sync.WaitGroup
}

// New creates a teardown worker.
func New(service *accounts.Service, q queue.Queue, maxMessages, waitSeconds int, logger *logging.Logger) *Worker {
	if service == nil {
		panic("teardown: service cannot be nil")
	}
	if q == nil {
		panic("teardown: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxMessages <= 0 {
		maxMessages = 5
	}
	if waitSeconds <= 0 {
		waitSeconds = 10
	}
	return &Worker{
		service:     service,
		queue:       q,
		logger:      logger,
		maxMessages: maxMessages,
		waitSeconds: waitSeconds,
	}
}

// Start launches the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Wait blocks until the polling loop has stopped.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	w.logger.Info("teardown worker started")

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("teardown worker stopping")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.maxMessages, w.waitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive teardown messages", "error", err)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) {
	var evt events.AccountDeletedV1
	if err := json.Unmarshal([]byte(msg.Body), &evt); err != nil {
		w.logger.Error("failed to decode teardown message", "error", err, "message_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	if evt.UserID == "" {
		w.logger.Error("teardown message carried no user id", "message_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := w.service.Teardown(ctx, evt.UserID); err != nil {
		// Leave the message in flight; the queue redelivers it.
		w.logger.Error("account teardown failed", "user_id", evt.UserID, "error", err)
		return
	}

	w.logger.Info("account teardown completed", "user_id", evt.UserID)
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete teardown message", "error", err)
	}
}
