package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/swan-ide/swanctl/internal/project"
	"github.com/swan-ide/swanctl/internal/results"
	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
	"github.com/swan-ide/swanctl/pkg/shared/files"
	"github.com/swan-ide/swanctl/pkg/shared/validation"
)

// State of an analysis run.
type State string

const (
	Idle               State = "Idle"
	ResolvingPaths     State = "ResolvingPaths"
	RunningStage1      State = "RunningStage1"
	AwaitingSideEffect State = "AwaitingSideEffect"
	RunningStage2      State = "RunningStage2"
	ParsingResults     State = "ParsingResults"
	Done               State = "Done"
	Failed             State = "Failed"
)

// Outcome records everything a run produced, including the states it went through.
type Outcome struct {
	Request    Request
	States     []State
	Stage1     *runner.Result
	Stage2     *runner.Result
	ResultFile string
	Findings   []results.Finding
	Warnings   []error
	// Output is the pretty-printed debug dump or the call-graph driver stdout.
	Output   string
	Err      error
	Duration time.Duration
}

// State returns the state the run ended in.
func (o *Outcome) State() State {
	if len(o.States) == 0 {
		return Idle
	}
	return o.States[len(o.States)-1]
}

// Succeeded reports whether the run reached Done.
func (o *Outcome) Succeeded() bool {
	return o.State() == Done
}

// Orchestrator runs the two-stage compile and analyse pipeline.
type Orchestrator struct {
	runner runner.Runner
	logger hclog.Logger
	output io.Writer
}

// New creates an Orchestrator. Process output and progress lines are written to output.
func New(r runner.Runner, logger hclog.Logger, output io.Writer) *Orchestrator {
	if output == nil {
		output = io.Discard
	}
	return &Orchestrator{runner: r, logger: logger, output: output}
}

type run struct {
	*Orchestrator
	outcome *Outcome
	logger  hclog.Logger
}

func (r *run) enter(state State) {
	from := r.outcome.State()
	r.outcome.States = append(r.outcome.States, state)
	r.logger.Debug("state transition", "from", from, "to", state)
}

func (r *run) fail(err *errors.AnalysisError) *Outcome {
	r.outcome.Err = err
	r.enter(Failed)
	r.logger.Warn("analysis failed", "kind", err.Kind, "stage", err.Stage, "error", err.Err)
	return r.outcome
}

func (r *run) println(format string, args ...interface{}) {
	fmt.Fprintf(r.output, format+"\n", args...)
}

// Run executes req and never panics on external failures; the failure is in Outcome.Err
// as an *errors.AnalysisError.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Outcome {
	start := time.Now()
	r := &run{
		Orchestrator: o,
		outcome:      &Outcome{Request: req, States: []State{Idle}},
		logger:       o.logger.With("run", req.ID, "kind", req.Kind, "file", req.File),
	}
	defer func() { r.outcome.Duration = time.Since(start) }()

	cfg := &r.outcome.Request.Config

	// Nothing touches the filesystem before the driver and spec paths are known to be usable.
	if err := validateRequest(req); err != nil {
		return r.fail(errors.New(errors.ConfigurationInvalid, string(Idle), err))
	}

	r.enter(ResolvingPaths)
	if root, ok := project.FindProjectRoot(filepath.Dir(req.File)); ok {
		r.outcome.Request.ProjectRoot = root
	}
	req = r.outcome.Request

	if err := validateStage1Tool(req); err != nil {
		return r.fail(errors.New(errors.ConfigurationInvalid, string(ResolvingPaths), err))
	}
	if req.Mode() == ModeProject {
		if err := files.RemoveIfExists(req.SideEffectDir()); err != nil {
			r.logger.Warn("failed to clear previous build artifacts", "dir", req.SideEffectDir(), "error", err)
		}
	}
	r.logger.Info("starting analysis", "mode", req.Mode(), "workdir", req.WorkDir())
	r.println("Running %s analysis on %s (%s mode)", req.Kind.DisplayName(), req.File, req.Mode())

	r.enter(RunningStage1)
	stage1, err := CompileCommand(req)
	if err != nil {
		return r.fail(errors.New(errors.ConfigurationInvalid, string(RunningStage1), err))
	}
	stage1.Output = o.output
	res, err := o.runner.Run(ctx, stage1)
	r.outcome.Stage1 = &res
	if err != nil {
		r.println("Error creating the SIL files: %s", strings.TrimSpace(res.Stderr))
		return r.fail(errors.NewStageError(string(RunningStage1), res.ExitCode, res.Stderr, err))
	}

	r.enter(AwaitingSideEffect)
	interval, timeout := config.PollSettings(cfg)
	if err := awaitSideEffect(ctx, req.SideEffectDir(), interval, timeout); err != nil {
		kind := errors.SideEffectTimeout
		if ctx.Err() != nil {
			kind = errors.StageProcessFailed
		}
		r.println("No files found in %s: %v", shared.SideEffectDirName, err)
		return r.fail(errors.New(kind, string(AwaitingSideEffect), err))
	}

	if name := req.Kind.ResultFileName(); name != "" {
		stale := results.ResultFilePath(req.SideEffectDir(), req.Kind)
		if err := files.RemoveIfExists(stale); err != nil {
			r.logger.Debug("failed to remove previous result file", "path", stale, "error", err)
		}
	}

	r.enter(RunningStage2)
	stage2 := DriverCommand(cfg, DriverArgs(req))
	stage2.Dir = req.WorkDir()
	stage2.Output = o.output
	res, err = o.runner.Run(ctx, stage2)
	r.outcome.Stage2 = &res
	if err != nil {
		r.println("Error: %s", strings.TrimSpace(res.Stderr))
		return r.fail(errors.NewStageError(string(RunningStage2), res.ExitCode, res.Stderr, err))
	}

	if req.Kind == shared.KindCallGraph {
		r.outcome.Output = res.Stdout
		if strings.TrimSpace(res.Stdout) == "" {
			r.println("No output returned from the driver.")
		}
		r.enter(Done)
		return r.outcome
	}

	r.enter(ParsingResults)
	if failure := r.parseResults(); failure != nil {
		return r.fail(failure)
	}

	r.enter(Done)
	r.logger.Info("analysis finished", "findings", len(r.outcome.Findings), "warnings", len(r.outcome.Warnings))
	return r.outcome
}

func (r *run) parseResults() *errors.AnalysisError {
	req := r.outcome.Request
	data, path, err := results.ReadResultFile(req.SideEffectDir(), req.Kind)
	r.outcome.ResultFile = path
	if err != nil {
		r.println("Error reading %s: %v", req.Kind.ResultFileName(), err)
		kind := errors.ResultParseError
		if stderrors.Is(err, os.ErrNotExist) {
			kind = errors.ResultFileMissing
		}
		return errors.New(kind, string(ParsingResults), err)
	}

	if req.Kind == shared.KindDebugDump {
		pretty, err := results.FormatDebugDump(data)
		if err != nil {
			r.println("Error parsing %s: %v", req.Kind.ResultFileName(), err)
			return errors.New(errors.ResultParseError, string(ParsingResults), err)
		}
		r.outcome.Output = pretty
		r.println("%s Results:", req.Kind.DisplayName())
		r.println("%s", pretty)
		return nil
	}

	report, err := results.Parse(data, req.Kind, req.WorkDir())
	r.outcome.Warnings = report.Warnings
	for _, warning := range report.Warnings {
		r.logger.Warn("skipped result item", "error", warning)
		r.println("Warning: %v", warning)
	}
	if err != nil {
		r.println("Error parsing %s: %v", req.Kind.ResultFileName(), err)
		return errors.New(errors.ResultParseError, string(ParsingResults), err)
	}
	r.outcome.Findings = report.Findings
	r.println("%s analysis found %d result(s)", req.Kind.DisplayName(), len(report.Findings))
	return nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.File) == "" {
		return fmt.Errorf("no target file")
	}
	if v := validation.ValidateToolPath(req.Config.Tools.DriverPath); !v.Valid {
		return fmt.Errorf("driver path: %s", v.Reason)
	}
	if req.Kind.Flag() == "" {
		return fmt.Errorf("unknown analysis kind %q", req.Kind)
	}
	if req.Kind.NeedsSpec() {
		if v := validation.ValidateToolPath(req.SpecPath); !v.Valid {
			return fmt.Errorf("%s specification path: %s", req.Kind, v.Reason)
		}
	}
	return nil
}

func validateStage1Tool(req Request) error {
	tools := req.Config.Tools
	if req.Mode() == ModeSingleFile {
		if v := validation.ValidateToolPath(tools.CompilerPath); !v.Valid {
			return fmt.Errorf("compiler path: %s", v.Reason)
		}
		return nil
	}
	if v := validation.ValidateToolPath(tools.BuildScriptPath); !v.Valid {
		return fmt.Errorf("build script path: %s", v.Reason)
	}
	if strings.TrimSpace(tools.BuildScriptInterpreter) == "" {
		return fmt.Errorf("build script interpreter: value is empty")
	}
	return nil
}
