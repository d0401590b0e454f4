package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

type scriptedClassifier struct {
	err   error
	calls int
}

func (s *scriptedClassifier) Classify(context.Context, *domain.Ticket) (domain.Classification, error) {
	s.calls++
	if s.err != nil {
		return domain.Classification{}, s.err
	}
	return domain.Classification{Category: "Bug", Severity: domain.SeverityLow}, nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedClassifier{err: ErrServiceFailure}
	breaker := NewBreakerClassifier(inner, "test", 2, time.Minute, zaptest.NewLogger(t))
	ticket := &domain.Ticket{ID: "t-1"}

	for i := 0; i < 3; i++ {
		_, err := breaker.Classify(context.Background(), ticket)
		assert.ErrorIs(t, err, ErrServiceFailure)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := breaker.Classify(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrServiceFailure)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerIgnoresThrottling(t *testing.T) {
	inner := &scriptedClassifier{err: ErrThrottled}
	breaker := NewBreakerClassifier(inner, "test", 1, time.Minute, nil)

	for i := 0; i < 5; i++ {
		_, err := breaker.Classify(context.Background(), &domain.Ticket{})
		assert.ErrorIs(t, err, ErrThrottled)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())

	inner.err = nil
	got, err := breaker.Classify(context.Background(), &domain.Ticket{})
	require.NoError(t, err)
	assert.Equal(t, "Bug", got.Category)
}
