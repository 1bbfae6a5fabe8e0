package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue for tests and local development.
type MemoryQueue struct {
	mu       sync.Mutex
	messages []Message
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Send(_ context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.messages = append(q.messages, Message{ID: id, Body: body, ReceiptHandle: id})
	return nil
}

func (q *MemoryQueue) Receive(_ context.Context, maxMessages int, _ int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if maxMessages <= 0 || maxMessages > len(q.messages) {
		maxMessages = len(q.messages)
	}
	out := make([]Message, maxMessages)
	copy(out, q.messages[:maxMessages])
	return out, nil
}

func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, msg := range q.messages {
		if msg.ReceiptHandle == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}
