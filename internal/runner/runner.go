package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string

	// Output, when set, additionally receives stdout and stderr as they are produced.
	Output io.Writer
}

// String renders the command line for logs and the output channel.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds what an external invocation produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external commands. Implementations must not panic on process failures.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger hclog.Logger
}

// New creates an ExecRunner that mirrors process output into logger at debug level.
func New(logger hclog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run starts the command, waits for it and captures its streams.
// The error is non-nil when the process could not start, was cancelled, or exited non-zero;
// Result.ExitCode is -1 when no exit status is available.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	var stdout, stderr bytes.Buffer
	logWriter := r.logger.StandardWriter(&hclog.StandardLoggerOptions{
		InferLevels: true,
		ForceLevel:  hclog.Debug,
	})

	outWriters := []io.Writer{&stdout, logWriter}
	errWriters := []io.Writer{&stderr, logWriter}
	if c.Output != nil {
		outWriters = append(outWriters, c.Output)
		errWriters = append(errWriters, c.Output)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = io.MultiWriter(outWriters...)
	cmd.Stderr = io.MultiWriter(errWriters...)

	r.logger.Debug("starting process", "command", c.String(), "dir", c.Dir)
	start := time.Now()
	err := cmd.Run()
	result := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Error(fmt.Sprintf("%q execution error", c.Name), "exit", result.ExitCode, "error", err)
			return result, fmt.Errorf("%q exited with status %d: %w", c.Name, result.ExitCode, err)
		}
		r.logger.Error(fmt.Sprintf("%q could not be started", c.Name), "error", err)
		return result, fmt.Errorf("%q could not be started: %w", c.Name, err)
	}

	r.logger.Debug("process finished", "command", c.Name, "duration", result.Duration)
	return result, nil
}
