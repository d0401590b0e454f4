// Package queue adapts the inbound ingestion queue.
package queue

import "context"

// Message is one received queue entry. ReceiptHandle identifies this delivery.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
}

// Queue is an at-least-once inbound queue. A received message stays invisible
// to other receivers until it is deleted or its visibility window lapses.
type Queue interface {
	Receive(ctx context.Context, maxMessages, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, msg Message) error
	Send(ctx context.Context, body string) (string, error)
}
