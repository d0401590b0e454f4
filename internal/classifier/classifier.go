// Package classifier provides the probabilistic ticket classifiers.
package classifier

import (
	"context"
	"errors"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

var (
	// ErrThrottled signals a rate-limited upstream. Callers may retry with backoff.
	ErrThrottled = errors.New("classifier throttled")
	// ErrServiceFailure signals a non-retryable classifier error.
	ErrServiceFailure = errors.New("classifier service failure")
)

// Classifier produces an AI verdict for a ticket.
type Classifier interface {
	Classify(ctx context.Context, ticket *domain.Ticket) (domain.Classification, error)
}
