package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrPipelineClosed is returned when work is registered on a pipeline that already ran.
var ErrPipelineClosed = errors.New("pipeline context is closed")

// ErrKernelClosed is returned when a command reaches a closed kernel.
var ErrKernelClosed = errors.New("kernel is closed")

// BufferingError means the front-end could not tokenize buffered text.
// The detector keeps buffering; the error surfaces on completion or abandon.
type BufferingError struct {
	Text string
	Err  error
}

func (e *BufferingError) Error() string {
	return fmt.Sprintf("buffered input cannot be tokenized: %v", e.Err)
}

func (e *BufferingError) Unwrap() error { return e.Err }

// EvaluationError means a unit executed but threw or produced diagnostics.
type EvaluationError struct {
	Err         error
	Diagnostics []Diagnostic
}

func (e *EvaluationError) Error() string {
	if len(e.Diagnostics) > 0 {
		return FormatDiagnostics(e.Diagnostics)
	}
	return e.Err.Error()
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// CancellationError reports a cooperative cancellation observed mid-execution.
// It matches context.Canceled (or context.DeadlineExceeded) through errors.Is.
type CancellationError struct {
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("execution cancelled: %v", e.cause())
}

func (e *CancellationError) Unwrap() error { return e.cause() }

func (e *CancellationError) cause() error {
	if e.Cause == nil {
		return context.Canceled
	}
	return e.Cause
}

// SubmissionProcessingError wraps any failure raised while routing directives.
type SubmissionProcessingError struct {
	Submission Submission
	Err        error
}

func (e *SubmissionProcessingError) Error() string {
	return fmt.Sprintf("processing submission %s failed: %v", e.Submission.ID, e.Err)
}

func (e *SubmissionProcessingError) Unwrap() error { return e.Err }

// UnsupportedCommandError is returned when no handler accepts a command type.
type UnsupportedCommandError struct {
	Command Command
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("no handler for command %T", e.Command)
}

// ConfigurationError reports boundary text that lacks an expected marker.
// Input holds the raw text so the caller can see what was received.
type ConfigurationError struct {
	Reason string
	Input  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s; received:\n%s", e.Reason, e.Input)
}

// IsCancellation reports whether err stems from a cancelled or expired context.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Exit codes per fault class, used by the CLI.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitBuffering     = 3
	ExitEvaluation    = 4
	ExitRouting       = 5
	ExitUnsupported   = 6
	ExitCancelled     = 130
)

// ExitCode maps an error to the exit code of its fault class.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		cfg  *ConfigurationError
		buf  *BufferingError
		eval *EvaluationError
		rout *SubmissionProcessingError
		uns  *UnsupportedCommandError
	)
	switch {
	case IsCancellation(err):
		return ExitCancelled
	case errors.As(err, &rout):
		return ExitRouting
	case errors.As(err, &cfg):
		return ExitConfiguration
	case errors.As(err, &buf):
		return ExitBuffering
	case errors.As(err, &eval):
		return ExitEvaluation
	case errors.As(err, &uns):
		return ExitUnsupported
	}
	return ExitFailure
}
