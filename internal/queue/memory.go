package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownReceipt is returned when deleting a message that is not in flight.
var ErrUnknownReceipt = errors.New("queue: unknown receipt handle")

// MemoryQueue is an in-process Queue. Messages that are received but never
// deleted stay in flight until ReleaseInFlight simulates visibility expiry.
type MemoryQueue struct {
	mu       sync.Mutex
	ready    []Message
	inFlight map[string]Message
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inFlight: make(map[string]Message)}
}

func (q *MemoryQueue) Send(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.ready = append(q.ready, Message{ID: id, Body: body})
	return id, nil
}

// Receive never blocks; waitSeconds is ignored.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages, _ int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := maxMessages
	if n <= 0 || n > len(q.ready) {
		n = len(q.ready)
	}
	batch := make([]Message, 0, n)
	for _, msg := range q.ready[:n] {
		msg.ReceiptHandle = uuid.NewString()
		q.inFlight[msg.ReceiptHandle] = msg
		batch = append(batch, msg)
	}
	q.ready = append([]Message(nil), q.ready[n:]...)
	return batch, nil
}

func (q *MemoryQueue) Delete(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[msg.ReceiptHandle]; !ok {
		return ErrUnknownReceipt
	}
	delete(q.inFlight, msg.ReceiptHandle)
	return nil
}

// ReleaseInFlight makes every undeleted message receivable again.
func (q *MemoryQueue) ReleaseInFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	released := 0
	for handle, msg := range q.inFlight {
		msg.ReceiptHandle = ""
		q.ready = append(q.ready, msg)
		delete(q.inFlight, handle)
		released++
	}
	return released
}

// Depth reports ready and in-flight message counts.
func (q *MemoryQueue) Depth() (ready, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.inFlight)
}
