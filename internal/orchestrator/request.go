package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/google/uuid"

	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
)

// Mode selects how the compile stage is run.
type Mode string

const (
	ModeSingleFile Mode = "single-file"
	ModeProject    Mode = "project"
)

// Request describes one analysis run. Config is a snapshot taken when the run was requested.
type Request struct {
	ID          string
	Kind        shared.Kind
	File        string
	ProjectRoot string // empty in single-file mode
	SpecPath    string
	Flags       []string
	Config      config.Config
	Token       Token
}

// NewRequest snapshots cfg and prepares a request for kind on file.
func NewRequest(kind shared.Kind, file string, cfg *config.Config, token Token) Request {
	snapshot := cfg.Snapshot()
	return Request{
		ID:       uuid.NewString(),
		Kind:     kind,
		File:     file,
		SpecPath: config.SpecPath(&snapshot, kind),
		Flags:    BoolFlags(&snapshot, kind),
		Config:   snapshot,
		Token:    token,
	}
}

// Mode reports the mode selected for the request.
func (r Request) Mode() Mode {
	if r.ProjectRoot != "" {
		return ModeProject
	}
	return ModeSingleFile
}

// WorkDir is the folder both stages run in.
func (r Request) WorkDir() string {
	if r.ProjectRoot != "" {
		return r.ProjectRoot
	}
	return filepath.Dir(r.File)
}

// SideEffectDir is the absolute path of the folder the compile stage populates.
func (r Request) SideEffectDir() string {
	return filepath.Join(r.WorkDir(), shared.SideEffectDirName)
}

// BoolFlags returns the enabled boolean switches. The debug and call_graph settings share
// their switches with the debug-dump and call-graph kinds: on any other kind they ask the
// driver for that output next to the analysis, and on their own kind they are already
// emitted as the kind flag and are not repeated.
func BoolFlags(cfg *config.Config, kind shared.Kind) []string {
	seen := map[string]bool{kind.Flag(): true}
	flags := make([]string, 0)
	for _, spec := range config.FlagSpecs {
		if !config.FlagValue(cfg, spec) || seen[spec.Switch] {
			continue
		}
		seen[spec.Switch] = true
		flags = append(flags, spec.Switch)
	}
	return flags
}

// DriverArgs builds "<kindFlag> [<spec>] [<boolFlags>] swan-dir/".
func DriverArgs(req Request) []string {
	args := []string{req.Kind.Flag()}
	if req.Kind.NeedsSpec() {
		args = append(args, req.SpecPath)
	}
	args = append(args, req.Flags...)
	return append(args, shared.SideEffectDirName+"/")
}

// DriverCommand wraps args into the command that starts the driver. Jar drivers are started
// through the configured java executable.
func DriverCommand(cfg *config.Config, args []string) runner.Command {
	driver := strings.TrimSpace(cfg.Tools.DriverPath)
	if strings.EqualFold(filepath.Ext(driver), ".jar") {
		java := config.SetThen(strings.TrimSpace(cfg.Tools.JavaPath), "java")
		return runner.Command{Name: java, Args: append([]string{"-jar", driver}, args...)}
	}
	return runner.Command{Name: driver, Args: args}
}

// CompileCommand builds the stage-1 command of req.
func CompileCommand(req Request) (runner.Command, error) {
	if req.Mode() == ModeSingleFile {
		return runner.Command{
			Name: strings.TrimSpace(req.Config.Tools.CompilerPath),
			Args: []string{filepath.Base(req.File)},
			Dir:  filepath.Dir(req.File),
		}, nil
	}

	interpreter, err := shlex.Split(req.Config.Tools.BuildScriptInterpreter)
	if err != nil {
		return runner.Command{}, fmt.Errorf("invalid build script interpreter %q: %w", req.Config.Tools.BuildScriptInterpreter, err)
	}
	if len(interpreter) == 0 {
		return runner.Command{}, fmt.Errorf("build script interpreter is empty")
	}
	return runner.Command{
		Name: interpreter[0],
		Args: append(interpreter[1:], strings.TrimSpace(req.Config.Tools.BuildScriptPath)),
		Dir:  req.ProjectRoot,
	}, nil
}
