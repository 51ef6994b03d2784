package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swan-ide/swanctl/internal/diagnostics"
	"github.com/swan-ide/swanctl/internal/project"
	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

const leakJSON = `[{"name":"Leak","description":"d","advice":"a","paths":[{"source":{"name":"S"},"sink":{"name":"T"},"path":["/f.swift:3:5"]}]}]`

type handler func(cmd runner.Command) (runner.Result, error)

type fakeRunner struct {
	mu       sync.Mutex
	commands []runner.Command
	handlers []handler
}

func (f *fakeRunner) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	idx := len(f.commands)
	f.commands = append(f.commands, cmd)
	var h handler
	if idx < len(f.handlers) {
		h = f.handlers[idx]
	}
	f.mu.Unlock()

	if h == nil {
		return runner.Result{}, nil
	}
	res, err := h(cmd)
	if cmd.Output != nil {
		fmt.Fprint(cmd.Output, res.Stdout)
		fmt.Fprint(cmd.Output, res.Stderr)
	}
	return res, err
}

func (f *fakeRunner) calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.commands...)
}

func populateSideEffect(t *testing.T) handler {
	return func(cmd runner.Command) (runner.Result, error) {
		dir := filepath.Join(cmd.Dir, shared.SideEffectDirName)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.sil"), []byte("sil"), 0644))
		return runner.Result{}, nil
	}
}

func writeResult(t *testing.T, name, content string) handler {
	return func(cmd runner.Command) (runner.Result, error) {
		path := filepath.Join(cmd.Dir, shared.SideEffectDirName, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return runner.Result{Stdout: "analysis done\n"}, nil
	}
}

func failWith(code int, stderr string) handler {
	return func(cmd runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: code, Stderr: stderr}, fmt.Errorf("%q exited with status %d", cmd.Name, code)
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Tools.CompilerPath = "/opt/swan/swan-swiftc"
	cfg.Tools.DriverPath = "/opt/swan/driver.jar"
	cfg.Tools.BuildScriptPath = "/opt/swan/build.sh"
	cfg.Specs.TaintPath = "/specs/taint.json"
	cfg.Specs.TypestatePath = "/specs/typestate.json"
	cfg.Orchestrator.PollInterval = 5 * time.Millisecond
	cfg.Orchestrator.SideEffectTimeout = time.Second
	return cfg
}

// looseFile returns a file path in a fresh folder that is not inside a package.
func looseFile(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	if root, ok := project.FindProjectRoot(dir); ok {
		t.Skipf("temporary directory is inside a package rooted at %s", root)
	}
	return filepath.Join(dir, name)
}

func newOrchestrator(r runner.Runner, out *bytes.Buffer) *Orchestrator {
	return New(r, hclog.NewNullLogger(), out)
}

func request(kind shared.Kind, file string, cfg *config.Config) Request {
	return NewRequest(kind, file, cfg, NewTokens().Begin(file))
}

func TestRunLeakScenario(t *testing.T) {
	file := looseFile(t, "f.swift")
	dir := filepath.Dir(file)
	fake := &fakeRunner{handlers: []handler{
		populateSideEffect(t),
		writeResult(t, "taint-results.json", leakJSON),
	}}
	var out bytes.Buffer

	outcome := newOrchestrator(fake, &out).Run(context.Background(), request(shared.KindTaint, file, testConfig()))
	require.NoError(t, outcome.Err)
	assert.Equal(t, []State{Idle, ResolvingPaths, RunningStage1, AwaitingSideEffect, RunningStage2, ParsingResults, Done}, outcome.States)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, ModeSingleFile, outcome.Request.Mode())

	calls := fake.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/opt/swan/swan-swiftc", calls[0].Name)
	assert.Equal(t, []string{"f.swift"}, calls[0].Args)
	assert.Equal(t, dir, calls[0].Dir)
	assert.Equal(t, "java", calls[1].Name)
	assert.Equal(t, []string{"-jar", "/opt/swan/driver.jar", "-t", "/specs/taint.json", "swan-dir/"}, calls[1].Args)
	assert.Equal(t, dir, calls[1].Dir)

	require.Len(t, outcome.Findings, 1)
	leak := outcome.Findings[0]
	assert.Equal(t, "Leak", leak.Name)
	require.Len(t, leak.Groups, 1)

	markers := diagnostics.NewSink().Apply("file:///f.swift", shared.KindTaint, outcome.Findings...)
	require.Len(t, markers, 1)
	assert.Equal(t, "/f.swift", markers[0].Path)
	assert.Equal(t, 2, markers[0].Line)
	assert.Equal(t, 4, markers[0].Column)
	assert.Contains(t, out.String(), "analysis done")
}

func TestRunDriverPathUnset(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")
	file := filepath.Join(missing, "f.swift")
	cfg := testConfig()
	cfg.Tools.DriverPath = ""
	fake := &fakeRunner{}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTaint, file, cfg))
	require.Error(t, outcome.Err)
	kind, ok := errors.KindOf(outcome.Err)
	require.True(t, ok)
	assert.Equal(t, errors.ConfigurationInvalid, kind)
	assert.Equal(t, []State{Idle, Failed}, outcome.States)
	assert.Empty(t, fake.calls())
	assert.NoDirExists(t, missing)
}

func TestRunConfigurationInvalid(t *testing.T) {
	tests := []struct {
		name   string
		kind   shared.Kind
		mutate func(*config.Config)
	}{
		{name: "driver without separator", kind: shared.KindCrypto, mutate: func(c *config.Config) { c.Tools.DriverPath = "driver.jar" }},
		{name: "taint spec unset", kind: shared.KindTaint, mutate: func(c *config.Config) { c.Specs.TaintPath = "" }},
		{name: "typestate spec blank", kind: shared.KindTypestate, mutate: func(c *config.Config) { c.Specs.TypestatePath = "   " }},
		{name: "compiler unset", kind: shared.KindCallGraph, mutate: func(c *config.Config) { c.Tools.CompilerPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			fake := &fakeRunner{}

			outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(tt.kind, looseFile(t, "f.swift"), cfg))
			assert.True(t, errorsIs(outcome.Err, errors.ConfigurationInvalid))
			assert.Equal(t, Failed, outcome.State())
			assert.Empty(t, fake.calls())
		})
	}
}

func TestRunStage1Failure(t *testing.T) {
	file := looseFile(t, "f.swift")
	fake := &fakeRunner{handlers: []handler{failWith(1, "error: cannot find 'foo' in scope\n")}}
	var out bytes.Buffer

	outcome := newOrchestrator(fake, &out).Run(context.Background(), request(shared.KindTaint, file, testConfig()))
	require.Error(t, outcome.Err)
	assert.Equal(t, []State{Idle, ResolvingPaths, RunningStage1, Failed}, outcome.States)
	assert.Len(t, fake.calls(), 1)
	assert.Empty(t, outcome.Findings)
	assert.Contains(t, out.String(), "cannot find 'foo' in scope")

	var analysisErr *errors.AnalysisError
	require.ErrorAs(t, outcome.Err, &analysisErr)
	assert.Equal(t, errors.StageProcessFailed, analysisErr.Kind)
	assert.Equal(t, 1, analysisErr.ExitCode)
	assert.Equal(t, "error: cannot find 'foo' in scope\n", analysisErr.Stderr)
}

func TestRunSideEffectTimeout(t *testing.T) {
	file := looseFile(t, "f.swift")
	cfg := testConfig()
	cfg.Orchestrator.SideEffectTimeout = 30 * time.Millisecond
	fake := &fakeRunner{}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTaint, file, cfg))
	assert.True(t, errorsIs(outcome.Err, errors.SideEffectTimeout))
	assert.Equal(t, []State{Idle, ResolvingPaths, RunningStage1, AwaitingSideEffect, Failed}, outcome.States)
	assert.Len(t, fake.calls(), 1)
}

func TestRunEmptySideEffectDirTimesOut(t *testing.T) {
	file := looseFile(t, "f.swift")
	cfg := testConfig()
	cfg.Orchestrator.SideEffectTimeout = 30 * time.Millisecond
	fake := &fakeRunner{handlers: []handler{func(cmd runner.Command) (runner.Result, error) {
		return runner.Result{}, os.MkdirAll(filepath.Join(cmd.Dir, shared.SideEffectDirName), 0755)
	}}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTaint, file, cfg))
	assert.True(t, errorsIs(outcome.Err, errors.SideEffectTimeout))
	assert.Len(t, fake.calls(), 1)
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	file := looseFile(t, "f.swift")
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeRunner{handlers: []handler{func(runner.Command) (runner.Result, error) {
		cancel()
		return runner.Result{}, nil
	}}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(ctx, request(shared.KindTaint, file, testConfig()))
	require.Error(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Len(t, fake.calls(), 1)
}

func TestRunStage2Failure(t *testing.T) {
	file := looseFile(t, "f.swift")
	fake := &fakeRunner{handlers: []handler{populateSideEffect(t), failWith(2, "Exception in thread main\n")}}
	var out bytes.Buffer

	outcome := newOrchestrator(fake, &out).Run(context.Background(), request(shared.KindTaint, file, testConfig()))
	assert.True(t, errorsIs(outcome.Err, errors.StageProcessFailed))
	assert.Equal(t, RunningStage2, outcome.States[len(outcome.States)-2])
	assert.Contains(t, out.String(), "Exception in thread main")
}

func TestRunResultFileMissing(t *testing.T) {
	file := looseFile(t, "f.swift")
	fake := &fakeRunner{handlers: []handler{populateSideEffect(t)}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTypestate, file, testConfig()))
	assert.True(t, errorsIs(outcome.Err, errors.ResultFileMissing))
	assert.Equal(t, ParsingResults, outcome.States[len(outcome.States)-2])
}

func TestRunStaleResultFileIsNotReused(t *testing.T) {
	file := looseFile(t, "f.swift")
	sideEffect := filepath.Join(filepath.Dir(file), shared.SideEffectDirName)
	require.NoError(t, os.MkdirAll(sideEffect, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sideEffect, "taint-results.json"), []byte(leakJSON), 0644))
	fake := &fakeRunner{}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTaint, file, testConfig()))
	assert.True(t, errorsIs(outcome.Err, errors.ResultFileMissing))
}

func TestRunResultParseError(t *testing.T) {
	file := looseFile(t, "f.swift")
	fake := &fakeRunner{handlers: []handler{populateSideEffect(t), writeResult(t, "crypto-results.json", "not json")}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindCrypto, file, testConfig()))
	assert.True(t, errorsIs(outcome.Err, errors.ResultParseError))
	assert.Empty(t, outcome.Findings)
}

func TestRunTypestateResolvesAgainstFolder(t *testing.T) {
	file := looseFile(t, "main.swift")
	dir := filepath.Dir(file)
	data := `[{"name":"FileOpenClose","description":"d","advice":"a","errors":[{"message":"not closed","pos":"main.swift:4:2"}]}]`
	fake := &fakeRunner{handlers: []handler{populateSideEffect(t), writeResult(t, "typestate-results.json", data)}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTypestate, file, testConfig()))
	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, file, outcome.Findings[0].Groups[0].Locations[0].Path)
	assert.Equal(t, []string{"-jar", "/opt/swan/driver.jar", "-e", "/specs/typestate.json", "swan-dir/"}, fake.calls()[1].Args)
	assert.Equal(t, filepath.Join(dir, "swan-dir", "typestate-results.json"), outcome.ResultFile)
}

func TestRunDebugDump(t *testing.T) {
	file := looseFile(t, "f.swift")
	cfg := testConfig()
	cfg.Flags.Debug = true
	cfg.Flags.Names = true
	fake := &fakeRunner{handlers: []handler{populateSideEffect(t), writeResult(t, "debug-dump.json", `{"functions":["main"]}`)}}
	var out bytes.Buffer

	outcome := newOrchestrator(fake, &out).Run(context.Background(), request(shared.KindDebugDump, file, cfg))
	require.NoError(t, outcome.Err)
	assert.Empty(t, outcome.Findings)
	assert.Contains(t, outcome.Output, "\"functions\": [")
	assert.Contains(t, out.String(), "\"functions\": [")
	assert.Equal(t, []string{"-jar", "/opt/swan/driver.jar", "-d", "-n", "swan-dir/"}, fake.calls()[1].Args)
}

func TestRunCallGraphHasNoParseStep(t *testing.T) {
	file := looseFile(t, "f.swift")
	cfg := testConfig()
	cfg.Tools.DriverPath = "/opt/swan/driver"
	cfg.Flags.CallGraph = true
	cfg.Flags.SingleThreaded = true
	fake := &fakeRunner{handlers: []handler{populateSideEffect(t), func(runner.Command) (runner.Result, error) {
		return runner.Result{Stdout: "digraph {}\n"}, nil
	}}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindCallGraph, file, cfg))
	require.NoError(t, outcome.Err)
	assert.NotContains(t, outcome.States, ParsingResults)
	assert.Equal(t, "digraph {}\n", outcome.Output)

	calls := fake.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/opt/swan/driver", calls[1].Name)
	assert.Equal(t, []string{"-g", "-s", "swan-dir/"}, calls[1].Args)
}

func TestRunProjectMode(t *testing.T) {
	root := t.TempDir()
	sources := filepath.Join(root, "Sources", "App")
	require.NoError(t, os.MkdirAll(sources, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, project.ManifestFileName), []byte("// swift-tools-version:5.5"), 0644))
	stale := filepath.Join(root, shared.SideEffectDirName, "old.sil")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	cfg := testConfig()
	cfg.Tools.BuildScriptInterpreter = "bash -e"
	file := filepath.Join(sources, "main.swift")

	fake := &fakeRunner{handlers: []handler{
		func(cmd runner.Command) (runner.Result, error) {
			assert.NoFileExists(t, stale)
			return populateSideEffect(t)(cmd)
		},
		writeResult(t, "taint-results.json", leakJSON),
	}}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTaint, file, cfg))
	require.NoError(t, outcome.Err)
	assert.Equal(t, ModeProject, outcome.Request.Mode())
	assert.Equal(t, root, outcome.Request.ProjectRoot)

	calls := fake.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "bash", calls[0].Name)
	assert.Equal(t, []string{"-e", "/opt/swan/build.sh"}, calls[0].Args)
	assert.Equal(t, root, calls[0].Dir)
	assert.Equal(t, root, calls[1].Dir)
}

func TestRunProjectModeInvalidBuildScript(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, project.ManifestFileName), []byte(""), 0644))
	artifact := filepath.Join(root, shared.SideEffectDirName, "old.sil")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0755))
	require.NoError(t, os.WriteFile(artifact, []byte("old"), 0644))

	cfg := testConfig()
	cfg.Tools.BuildScriptPath = ""
	fake := &fakeRunner{}

	outcome := newOrchestrator(fake, &bytes.Buffer{}).Run(context.Background(), request(shared.KindTaint, filepath.Join(root, "main.swift"), cfg))
	assert.True(t, errorsIs(outcome.Err, errors.ConfigurationInvalid))
	assert.Equal(t, []State{Idle, ResolvingPaths, Failed}, outcome.States)
	assert.Empty(t, fake.calls())
	assert.FileExists(t, artifact)
}

func TestRequestSnapshotsConfig(t *testing.T) {
	cfg := testConfig()
	req := request(shared.KindTaint, "/work/f.swift", cfg)

	cfg.Specs.TaintPath = "/changed.json"
	cfg.Tools.DriverPath = ""
	assert.Equal(t, "/specs/taint.json", req.SpecPath)
	assert.Equal(t, "/opt/swan/driver.jar", req.Config.Tools.DriverPath)
	assert.NotEmpty(t, req.ID)
}

func TestBoolFlags(t *testing.T) {
	cfg := testConfig()
	for _, spec := range config.FlagSpecs {
		require.NoError(t, config.Set(cfg, "flags."+spec.Key, "true"))
	}

	assert.Equal(t, []string{"-f", "-d", "-g", "-i", "-n", "-o", "-r", "-s"}, BoolFlags(cfg, shared.KindTaint))
	assert.Equal(t, []string{"-f", "-d", "-i", "-n", "-o", "-r", "-s"}, BoolFlags(cfg, shared.KindCallGraph))
	assert.Equal(t, []string{"-f", "-g", "-i", "-n", "-o", "-r", "-s"}, BoolFlags(cfg, shared.KindDebugDump))
	assert.Empty(t, BoolFlags(testConfig(), shared.KindTaint))
}

func TestDriverArgsEmitEachSwitchOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Flags.Debug = true
	cfg.Flags.CallGraph = true
	for _, kind := range shared.Kinds {
		args := DriverArgs(NewRequest(kind, "/work/f.swift", cfg, Token{}))
		seen := map[string]int{}
		for _, arg := range args {
			seen[arg]++
		}
		for arg, n := range seen {
			assert.Equal(t, 1, n, "kind %s repeats %s", kind, arg)
		}
		assert.Equal(t, kind.Flag(), args[0])
		assert.Equal(t, "swan-dir/", args[len(args)-1])
	}
}

func TestDriverArgsSharedSwitches(t *testing.T) {
	cfg := testConfig()
	cfg.Flags.Debug = true
	cfg.Flags.CallGraph = true

	taint := DriverArgs(NewRequest(shared.KindTaint, "/work/f.swift", cfg, Token{}))
	assert.Equal(t, []string{"-t", cfg.Specs.TaintPath, "-d", "-g", "swan-dir/"}, taint)

	dump := DriverArgs(NewRequest(shared.KindDebugDump, "/work/f.swift", cfg, Token{}))
	assert.Equal(t, []string{"-d", "-g", "swan-dir/"}, dump)

	graph := DriverArgs(NewRequest(shared.KindCallGraph, "/work/f.swift", cfg, Token{}))
	assert.Equal(t, []string{"-g", "-d", "swan-dir/"}, graph)
}

func TestDriverCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Tools.JavaPath = "/usr/lib/jvm/bin/java"
	cmd := DriverCommand(cfg, []string{"-help"})
	assert.Equal(t, "/usr/lib/jvm/bin/java", cmd.Name)
	assert.Equal(t, []string{"-jar", "/opt/swan/driver.jar", "-help"}, cmd.Args)

	cfg.Tools.JavaPath = ""
	assert.Equal(t, "java", DriverCommand(cfg, nil).Name)

	cfg.Tools.DriverPath = "/opt/swan/driver"
	cmd = DriverCommand(cfg, []string{"-help"})
	assert.Equal(t, "/opt/swan/driver", cmd.Name)
	assert.Equal(t, []string{"-help"}, cmd.Args)
}

func TestCompileCommandRejectsBadInterpreter(t *testing.T) {
	req := request(shared.KindTaint, "/proj/main.swift", testConfig())
	req.ProjectRoot = "/proj"
	req.Config.Tools.BuildScriptInterpreter = `bash "-e`
	_, err := CompileCommand(req)
	assert.Error(t, err)
}

func TestHelp(t *testing.T) {
	fake := &fakeRunner{handlers: []handler{func(runner.Command) (runner.Result, error) {
		return runner.Result{Stdout: "Usage: driver [options]\n"}, nil
	}}}
	var out bytes.Buffer

	require.NoError(t, newOrchestrator(fake, &bytes.Buffer{}).Help(context.Background(), testConfig(), &out))
	assert.Equal(t, "Usage: driver [options]\n", out.String())
	assert.Equal(t, []string{"-jar", "/opt/swan/driver.jar", "-help"}, fake.calls()[0].Args)

	cfg := testConfig()
	cfg.Tools.DriverPath = ""
	err := newOrchestrator(fake, &bytes.Buffer{}).Help(context.Background(), cfg, &out)
	assert.True(t, errorsIs(err, errors.ConfigurationInvalid))
	assert.Len(t, fake.calls(), 1)
}

func errorsIs(err error, kind errors.Kind) bool {
	got, ok := errors.KindOf(err)
	return ok && got == kind
}
