// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Stage names a step of the intake pipeline.
type Stage string

// Pipeline stages that can fail.
const (
	StageInput       Stage = "input"
	StageExtraction  Stage = "extraction"
	StageStructuring Stage = "structuring"
	StageSynthesis   Stage = "synthesis"
	StagePersistence Stage = "persistence"
	StageScoring     Stage = "scoring"
)

// Kind classifies why a stage failed.
type Kind string

// Failure kinds.
const (
	KindNoParsedResult   Kind = "no_parsed_result"
	KindServiceReported  Kind = "service_reported"
	KindEmptyText        Kind = "empty_text"
	KindTransportFailure Kind = "transport_failure"
	KindTimeout          Kind = "timeout"
	KindCanceled         Kind = "canceled"
	KindMalformedJSON    Kind = "malformed_json"
	KindNoObservations   Kind = "no_observations"
	KindInvalidInput     Kind = "invalid_input"
	KindStorage          Kind = "storage"
)

// Kind sentinels, matchable with errors.Is against any StageError.
var (
	ErrNoParsedResult   = errors.New("no parsed result")
	ErrServiceReported  = errors.New("service reported an error")
	ErrEmptyText        = errors.New("extracted text is empty")
	ErrTransportFailure = errors.New("transport failure")
	ErrTimeout          = errors.New("timed out")
	ErrCanceled         = errors.New("canceled")
	ErrMalformedJSON    = errors.New("malformed JSON")
	ErrNoObservations   = errors.New("no observations")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStorage          = errors.New("storage failure")
)

var kindSentinels = map[Kind]error{
	KindNoParsedResult:   ErrNoParsedResult,
	KindServiceReported:  ErrServiceReported,
	KindEmptyText:        ErrEmptyText,
	KindTransportFailure: ErrTransportFailure,
	KindTimeout:          ErrTimeout,
	KindCanceled:         ErrCanceled,
	KindMalformedJSON:    ErrMalformedJSON,
	KindNoObservations:   ErrNoObservations,
	KindInvalidInput:     ErrInvalidInput,
	KindStorage:          ErrStorage,
}

// StageError reports a failure in one pipeline stage.
// Message carries the raw text returned by the external service, if any.
// Step narrows the failure inside the stage (for example "upload" or "poll").
type StageError struct {
	Err     error
	Stage   Stage
	Kind    Kind
	Step    string
	Message string
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	if e.Step != "" {
		b.WriteString("/")
		b.WriteString(e.Step)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewExtractionError builds an extraction-stage error.
func NewExtractionError(kind Kind, step, message string, err error) *StageError {
	return &StageError{Stage: StageExtraction, Kind: kind, Step: step, Message: message, Err: err}
}

// NewStructuringError builds a structuring-stage error.
func NewStructuringError(kind Kind, message string, err error) *StageError {
	return &StageError{Stage: StageStructuring, Kind: kind, Message: message, Err: err}
}

// NewSynthesisError builds a synthesis-stage error.
func NewSynthesisError(kind Kind, message string, err error) *StageError {
	return &StageError{Stage: StageSynthesis, Kind: kind, Message: message, Err: err}
}

// NewScoringError builds a scoring-stage error.
func NewScoringError(kind Kind, message string, err error) *StageError {
	return &StageError{Stage: StageScoring, Kind: kind, Message: message, Err: err}
}

// KindOf returns the failure kind of err, or "" if err is not a StageError.
func KindOf(err error) Kind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
