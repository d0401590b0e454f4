package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes, one per failure kind surfaced to callers.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidation             = "VALIDATION_FAILED"
	CodeThrottled              = "THROTTLED"
	CodeClassifierFailure      = "CLASSIFIER_FAILURE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeWorkflowResumeFailure  = "WORKFLOW_RESUME_FAILURE"
	CodeConflict               = "CONFLICT"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError carries a field -> reason map in Details.
func NewValidationError(message string, fields map[string]string) error {
	details := make(map[string]any, len(fields))
	for field, reason := range fields {
		details[field] = reason
	}
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewThrottled(err error) error {
	return &DomainError{
		Code:       CodeThrottled,
		Message:    "classifier request throttled",
		HTTPStatus: http.StatusTooManyRequests,
		Err:        err,
	}
}

func NewClassifierFailure(err error) error {
	return &DomainError{
		Code:       CodeClassifierFailure,
		Message:    "failed to classify ticket",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewConcurrentModification(resource string, details map[string]any) error {
	return &DomainError{
		Code:       CodeConcurrentModification,
		Message:    fmt.Sprintf("%s was modified concurrently; re-read and retry", resource),
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

func NewWorkflowResumeFailure(approvalID string, err error) error {
	return &DomainError{
		Code:       CodeWorkflowResumeFailure,
		Message:    "decision recorded but workflow resume failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"approval_id": approvalID},
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Is reports whether err carries a DomainError with code.
func Is(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
