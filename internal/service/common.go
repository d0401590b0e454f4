package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, now Clock, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	if event.Actor == "" {
		event.Actor = domain.ActorSystem
	}
	_ = dispatcher.Publish(ctx, event)
}

// mapRepoError turns repository sentinels into DomainErrors.
func mapRepoError(err error, resource, id string) error {
	details := map[string]any{"id": id}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConcurrentModification(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	default:
		return apperrors.NewInternalError(err)
	}
}

const maxStatusAdvanceAttempts = 3

// advanceTicket applies a status transition with a fresh read per attempt.
// It is used for side transitions that must not fail the primary operation.
func advanceTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string, next domain.TicketStatus, actor, reason string, at time.Time) error {
	var err error
	for attempt := 0; attempt < maxStatusAdvanceAttempts; attempt++ {
		var ticket *domain.Ticket
		ticket, err = tickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status == next {
			return nil
		}
		expected := ticket.Version
		ticket.Transition(next, actor, reason, at)
		if err = tickets.Update(ctx, ticket, expected); !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return err
}
