// Package workflow talks to the durable orchestrator that owns batch executions.
package workflow

import (
	"context"
	"errors"
)

// ErrTaskNotResumable means the orchestrator no longer accepts the task token
// (already used, timed out, or unknown). Retrying will not help.
var ErrTaskNotResumable = errors.New("workflow: task token not resumable")

// Orchestrator starts executions and resumes paused tasks by token.
type Orchestrator interface {
	StartExecution(ctx context.Context, name string, input any) (string, error)
	ResumeWithSuccess(ctx context.Context, taskToken string, output any) error
	ResumeWithFailure(ctx context.Context, taskToken, errorCode, cause string) error
}
