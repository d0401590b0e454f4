package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// BreakerClassifier short-circuits calls to an unhealthy classifier.
// Throttling does not count against the breaker; an open breaker surfaces as ErrServiceFailure.
type BreakerClassifier struct {
	next Classifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerClassifier wraps next with a circuit breaker that trips after
// more than maxFailures consecutive service failures.
func NewBreakerClassifier(next Classifier, name string, maxFailures uint32, openFor time.Duration, logger *zap.Logger) *BreakerClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrThrottled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("classifier breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerClassifier{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerClassifier) Classify(ctx context.Context, ticket *domain.Ticket) (domain.Classification, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Classify(ctx, ticket)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Classification{}, fmt.Errorf("%w: %v", ErrServiceFailure, err)
	}
	if err != nil {
		return domain.Classification{}, err
	}
	return result.(domain.Classification), nil
}

// State exposes the breaker state for readiness reporting.
func (b *BreakerClassifier) State() gobreaker.State {
	return b.cb.State()
}
