package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// ResumeFailure records a decision whose workflow resumption did not go through.
type ResumeFailure struct {
	ApprovalID string                `json:"approvalId"`
	TicketID   string                `json:"ticketId"`
	TaskToken  string                `json:"taskToken"`
	Decision   domain.ApprovalStatus `json:"decision"`
	Error      string                `json:"error"`
	Attempts   int                   `json:"attempts"`
	FailedAt   time.Time             `json:"failedAt"`
}

// ResumeFailureLedger is the operator worklist for manual resumption.
// Record increments Attempts when an entry for the approval already exists.
type ResumeFailureLedger interface {
	Record(ctx context.Context, failure ResumeFailure) error
	Get(ctx context.Context, approvalID string) (*ResumeFailure, error)
	List(ctx context.Context) ([]ResumeFailure, error)
	Remove(ctx context.Context, approvalID string) error
}

type redisResumeFailureLedger struct {
	client redis.UniversalClient
	key    string
}

// NewRedisResumeFailureLedger stores failures in a Redis hash keyed by approval id.
func NewRedisResumeFailureLedger(client redis.UniversalClient, key string) ResumeFailureLedger {
	if key == "" {
		key = "defect-ticket:resume-failures"
	}
	return &redisResumeFailureLedger{client: client, key: key}
}

func (l *redisResumeFailureLedger) Record(ctx context.Context, failure ResumeFailure) error {
	existing, err := l.Get(ctx, failure.ApprovalID)
	switch {
	case err == nil:
		failure.Attempts = existing.Attempts + 1
	case errors.Is(err, ErrNotFound):
		failure.Attempts = 1
	default:
		return err
	}
	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("encode resume failure: %w", err)
	}
	return l.client.HSet(ctx, l.key, failure.ApprovalID, payload).Err()
}

func (l *redisResumeFailureLedger) Get(ctx context.Context, approvalID string) (*ResumeFailure, error) {
	raw, err := l.client.HGet(ctx, l.key, approvalID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var failure ResumeFailure
	if err := json.Unmarshal([]byte(raw), &failure); err != nil {
		return nil, fmt.Errorf("decode resume failure: %w", err)
	}
	return &failure, nil
}

func (l *redisResumeFailureLedger) List(ctx context.Context) ([]ResumeFailure, error) {
	entries, err := l.client.HGetAll(ctx, l.key).Result()
	if err != nil {
		return nil, err
	}
	result := make([]ResumeFailure, 0, len(entries))
	for approvalID, raw := range entries {
		var failure ResumeFailure
		if err := json.Unmarshal([]byte(raw), &failure); err != nil {
			return nil, fmt.Errorf("decode resume failure %s: %w", approvalID, err)
		}
		result = append(result, failure)
	}
	sortFailures(result)
	return result, nil
}

func (l *redisResumeFailureLedger) Remove(ctx context.Context, approvalID string) error {
	return l.client.HDel(ctx, l.key, approvalID).Err()
}

// MemoryResumeFailureLedger is the in-process ledger.
type MemoryResumeFailureLedger struct {
	mu       sync.Mutex
	failures map[string]ResumeFailure
}

func NewMemoryResumeFailureLedger() *MemoryResumeFailureLedger {
	return &MemoryResumeFailureLedger{failures: make(map[string]ResumeFailure)}
}

func (m *MemoryResumeFailureLedger) Record(_ context.Context, failure ResumeFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	failure.Attempts = m.failures[failure.ApprovalID].Attempts + 1
	m.failures[failure.ApprovalID] = failure
	return nil
}

func (m *MemoryResumeFailureLedger) Get(_ context.Context, approvalID string) (*ResumeFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	failure, ok := m.failures[approvalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &failure, nil
}

func (m *MemoryResumeFailureLedger) List(context.Context) ([]ResumeFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ResumeFailure, 0, len(m.failures))
	for _, failure := range m.failures {
		result = append(result, failure)
	}
	sortFailures(result)
	return result, nil
}

func (m *MemoryResumeFailureLedger) Remove(_ context.Context, approvalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, approvalID)
	return nil
}

func sortFailures(failures []ResumeFailure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].FailedAt.Equal(failures[j].FailedAt) {
			return failures[i].ApprovalID < failures[j].ApprovalID
		}
		return failures[i].FailedAt.Before(failures[j].FailedAt)
	})
}
