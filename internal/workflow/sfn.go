package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sfn"
)

// SFNAPI is the subset of the Step Functions client used by the adapter.
type SFNAPI interface {
	StartExecutionWithContext(ctx aws.Context, input *sfn.StartExecutionInput, opts ...request.Option) (*sfn.StartExecutionOutput, error)
	SendTaskSuccessWithContext(ctx aws.Context, input *sfn.SendTaskSuccessInput, opts ...request.Option) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailureWithContext(ctx aws.Context, input *sfn.SendTaskFailureInput, opts ...request.Option) (*sfn.SendTaskFailureOutput, error)
}

// StepFunctions drives a single state machine.
type StepFunctions struct {
	client          SFNAPI
	stateMachineARN string
}

func NewStepFunctions(client SFNAPI, stateMachineARN string) *StepFunctions {
	return &StepFunctions{client: client, stateMachineARN: stateMachineARN}
}

func (s *StepFunctions) StartExecution(ctx context.Context, name string, input any) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode execution input: %w", err)
	}
	out, err := s.client.StartExecutionWithContext(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(s.stateMachineARN),
		Name:            aws.String(name),
		Input:           aws.String(string(payload)),
	})
	if err != nil {
		return "", fmt.Errorf("start execution %s: %w", name, err)
	}
	return aws.StringValue(out.ExecutionArn), nil
}

func (s *StepFunctions) ResumeWithSuccess(ctx context.Context, taskToken string, output any) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode task output: %w", err)
	}
	_, err = s.client.SendTaskSuccessWithContext(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(payload)),
	})
	return mapTaskError("send task success", err)
}

func (s *StepFunctions) ResumeWithFailure(ctx context.Context, taskToken, errorCode, cause string) error {
	_, err := s.client.SendTaskFailureWithContext(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(taskToken),
		Error:     aws.String(errorCode),
		Cause:     aws.String(cause),
	})
	return mapTaskError("send task failure", err)
}

func mapTaskError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case sfn.ErrCodeTaskTimedOut, sfn.ErrCodeTaskDoesNotExist, sfn.ErrCodeInvalidToken:
			return fmt.Errorf("%s: %w: %v", op, ErrTaskNotResumable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
