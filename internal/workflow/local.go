package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resumption is one recorded resume call.
type Resumption struct {
	TaskToken string
	Success   bool
	Output    string
	ErrorCode string
	Cause     string
}

// Execution is one recorded start call.
type Execution struct {
	ARN   string
	Name  string
	Input string
}

// LocalOrchestrator records calls in memory for local runs and tests.
// Like the real orchestrator it accepts each task token only once.
type LocalOrchestrator struct {
	mu          sync.Mutex
	logger      *zap.Logger
	executions  []Execution
	resumptions []Resumption
	used        map[string]bool
	failNext    error
}

func NewLocalOrchestrator(logger *zap.Logger) *LocalOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalOrchestrator{logger: logger, used: make(map[string]bool)}
}

// FailNext makes the next call return err.
func (o *LocalOrchestrator) FailNext(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failNext = err
}

func (o *LocalOrchestrator) takeFailure() error {
	err := o.failNext
	o.failNext = nil
	return err
}

func (o *LocalOrchestrator) StartExecution(_ context.Context, name string, input any) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode execution input: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.takeFailure(); err != nil {
		return "", err
	}
	arn := "arn:local:execution:" + name + ":" + uuid.NewString()
	o.executions = append(o.executions, Execution{ARN: arn, Name: name, Input: string(payload)})
	o.logger.Info("local execution started", zap.String("name", name))
	return arn, nil
}

func (o *LocalOrchestrator) ResumeWithSuccess(_ context.Context, taskToken string, output any) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode task output: %w", err)
	}
	return o.resume(Resumption{TaskToken: taskToken, Success: true, Output: string(payload)})
}

func (o *LocalOrchestrator) ResumeWithFailure(_ context.Context, taskToken, errorCode, cause string) error {
	return o.resume(Resumption{TaskToken: taskToken, ErrorCode: errorCode, Cause: cause})
}

func (o *LocalOrchestrator) resume(r Resumption) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.takeFailure(); err != nil {
		return err
	}
	if o.used[r.TaskToken] {
		return fmt.Errorf("resume %s: %w", r.TaskToken, ErrTaskNotResumable)
	}
	o.used[r.TaskToken] = true
	o.resumptions = append(o.resumptions, r)
	o.logger.Info("local task resumed", zap.Bool("success", r.Success), zap.String("error_code", r.ErrorCode))
	return nil
}

// Executions returns a copy of recorded starts.
func (o *LocalOrchestrator) Executions() []Execution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Execution(nil), o.executions...)
}

// Resumptions returns a copy of recorded resumes.
func (o *LocalOrchestrator) Resumptions() []Resumption {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Resumption(nil), o.resumptions...)
}
