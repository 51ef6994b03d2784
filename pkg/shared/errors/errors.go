package errors

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis run stopped.
type Kind string

const (
	ConfigurationInvalid Kind = "ConfigurationInvalid"
	StageProcessFailed   Kind = "StageProcessFailed"
	SideEffectTimeout    Kind = "SideEffectTimeout"
	ResultFileMissing    Kind = "ResultFileMissing"
	ResultParseError     Kind = "ResultParseError"
)

// Transient reports whether the failure should be shown as a warning rather than an error.
func (k Kind) Transient() bool {
	return k == SideEffectTimeout || k == ResultFileMissing
}

// AnalysisError describes a failed analysis run.
type AnalysisError struct {
	Kind     Kind
	Stage    string // orchestrator state the run failed in
	ExitCode int    // exit status of the failing process, -1 when it never ran
	Stderr   string // captured error stream, surfaced verbatim
	Err      error
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("%s during %s", e.Kind, e.Stage)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Is matches another *AnalysisError by Kind, so errors.Is(err, &AnalysisError{Kind: k}) works.
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an AnalysisError that did not involve a finished process.
func New(kind Kind, stage string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Stage: stage, ExitCode: -1, Err: err}
}

// NewStageError creates a StageProcessFailed error with the captured process output.
func NewStageError(stage string, exitCode int, stderr string, err error) *AnalysisError {
	return &AnalysisError{
		Kind:     StageProcessFailed,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// KindOf extracts the Kind of an AnalysisError in err's chain.
func KindOf(err error) (Kind, bool) {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Kind, true
	}
	return "", false
}

// ParseErrorKind classifies a result parsing failure.
type ParseErrorKind string

const (
	MalformedJSON   ParseErrorKind = "MalformedJson"
	UnexpectedShape ParseErrorKind = "UnexpectedShape"
	BadLocation     ParseErrorKind = "BadLocation"
)

// ParseError is returned by result parsing, either for a whole file or for a single item.
type ParseError struct {
	Kind ParseErrorKind
	Item string // location of the offending item, e.g. "[0].paths[2]"
	Err  error
}

func (e *ParseError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Item, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError.
func NewParseError(kind ParseErrorKind, item string, err error) *ParseError {
	return &ParseError{Kind: kind, Item: item, Err: err}
}

// CommandError carries an exit code for the CLI layer.
type CommandError struct {
	ExitCode    int
	CommonError string
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// NewCommandError wraps err with the exit code the process should terminate with.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
	}
}
