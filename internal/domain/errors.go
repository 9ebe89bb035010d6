package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrValidation             = errors.New("validation failed")
	ErrUsageLimitExceeded     = errors.New("usage limit exceeded")
	ErrJobCreation            = errors.New("job creation failed")
	ErrJobExecution           = errors.New("job execution failed")
	ErrTransientPoll          = errors.New("transient poll error")
	ErrUsageCheckUnavailable  = errors.New("usage check unavailable")
)

// ValidationError describes a missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UsageLimitError carries the usage numbers reported with a rejection.
type UsageLimitError struct {
	CurrentUsage int
	Limit        int
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("usage limit exceeded (%d/%d)", e.CurrentUsage, e.Limit)
}

func (e *UsageLimitError) Unwrap() error { return ErrUsageLimitExceeded }

// JobCreationError wraps a failed create call.
type JobCreationError struct {
	Err error
}

func (e *JobCreationError) Error() string {
	return fmt.Sprintf("job creation failed: %v", e.Err)
}

func (e *JobCreationError) Unwrap() []error { return []error{ErrJobCreation, e.Err} }

// JobExecutionError is a terminal failure reported by the server while polling.
type JobExecutionError struct {
	JobID   string
	Message string
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

func (e *JobExecutionError) Unwrap() error { return ErrJobExecution }
