package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
)

type commandFunc func(ctx context.Context, args []string) (interface{}, error)

// MenuItem is one entry of the analysis quick pick.
type MenuItem struct {
	Kind  shared.Kind `json:"kind"`
	Label string      `json:"label"`
}

// SettingsView is what the open-settings command hands to the editor.
type SettingsView struct {
	Path     string        `json:"path,omitempty"`
	Config   config.Config `json:"config"`
	Problems []string      `json:"problems,omitempty"`
	Rejected string        `json:"rejected,omitempty"`
}

func (s *Shell) registerCommands() map[string]commandFunc {
	return map[string]commandFunc{
		shared.CommandMenu:          s.cmdMenu,
		shared.CommandRunAnalysis:   s.cmdRunAnalysis,
		shared.CommandDetailedLogs:  s.cmdDetailedLogs,
		shared.CommandSummary:       s.cmdSummary,
		shared.CommandClearFindings: s.cmdClearFindings,
		shared.CommandRemoveFinding: s.cmdRemoveFinding,
		shared.CommandSetSpecPath:   s.cmdSetSpecPath,
		shared.CommandOpenSettings:  s.cmdOpenSettings,
		shared.CommandDefaults:      s.cmdDefaults,
		shared.CommandHelp:          s.cmdHelp,
		shared.CommandToggleFlag:    s.cmdToggleFlag,
	}
}

// CommandNames lists the registered commands, sorted.
func (s *Shell) CommandNames() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a command by identifier.
func (s *Shell) Execute(ctx context.Context, command string, args []string) (interface{}, error) {
	fn, ok := s.commands[command]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", command)
	}
	s.logger.Debug("executing command", "command", command, "args", args)
	return fn(ctx, args)
}

func (s *Shell) cmdMenu(context.Context, []string) (interface{}, error) {
	items := make([]MenuItem, 0, len(shared.Kinds))
	for _, kind := range shared.Kinds {
		items = append(items, MenuItem{Kind: kind, Label: kind.DisplayName() + " Analysis"})
	}
	return items, nil
}

// cmdRunAnalysis expects a kind and optionally a document, defaulting to the active editor.
func (s *Shell) cmdRunAnalysis(ctx context.Context, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: %s <kind> [document]", shared.CommandRunAnalysis)
	}
	kind, err := shared.ParseKind(args[0])
	if err != nil {
		return nil, err
	}

	document := ""
	if len(args) > 1 {
		document = args[1]
	} else {
		s.mu.Lock()
		document = s.activeDocument
		s.mu.Unlock()
	}
	if document == "" {
		s.notifyUser(SeverityWarning, "No active editor with an open file.")
		return nil, fmt.Errorf("no document to analyse")
	}

	s.notifyUser(SeverityInfo, "Running: %s", DocumentPath(document))
	return s.Start(ctx, document, kind)
}

func (s *Shell) cmdDetailedLogs(context.Context, []string) (interface{}, error) {
	return s.output.String(), nil
}

// cmdSummary returns the run history of a document, or of every document without arguments.
func (s *Shell) cmdSummary(_ context.Context, args []string) (interface{}, error) {
	var runs []RunSummary
	if len(args) > 0 {
		runs = s.history.Document(args[0])
	} else {
		runs = s.history.All()
	}

	lines := make([]string, 0, len(runs)+1)
	lines = append(lines, fmt.Sprintf("Analysis Summary (%d run(s), %d finding(s) in view)", len(runs), len(s.tree.Findings())))
	for _, run := range runs {
		lines = append(lines, run.String())
	}
	fmt.Fprintln(s.output, strings.Join(lines, "\n"))
	return runs, nil
}

func (s *Shell) cmdClearFindings(context.Context, []string) (interface{}, error) {
	s.tree.Clear()
	return nil, nil
}

func (s *Shell) cmdRemoveFinding(_ context.Context, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: %s <label>", shared.CommandRemoveFinding)
	}
	return s.tree.RemoveFinding(args[0]), nil
}

func (s *Shell) cmdSetSpecPath(_ context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: %s <taint|typestate> <path>", shared.CommandSetSpecPath)
	}
	kind, err := shared.ParseKind(args[0])
	if err != nil {
		return nil, err
	}
	if !kind.NeedsSpec() {
		return nil, fmt.Errorf("%s analysis takes no specification file", kind)
	}

	path := strings.TrimSpace(args[1])
	err = s.updateConfig(func(cfg *config.Config) error {
		return config.Set(cfg, fmt.Sprintf("specs.%s_path", kind), path)
	})
	if err != nil {
		return nil, err
	}
	s.notifyUser(SeverityInfo, "%s specification path set to %s", kind.DisplayName(), path)
	return path, nil
}

func (s *Shell) cmdOpenSettings(context.Context, []string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := SettingsView{
		Path:     s.path,
		Config:   s.cfg.Snapshot(),
		Problems: config.ToolProblems(s.cfg),
	}
	if s.rejected != nil {
		view.Rejected = s.rejected.Error()
	}
	return view, nil
}

// cmdDefaults resets every setting. Findings and diagnostics are kept.
func (s *Shell) cmdDefaults(context.Context, []string) (interface{}, error) {
	err := s.updateConfig(func(cfg *config.Config) error {
		*cfg = *config.Default()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyUser(SeverityInfo, "Settings reset to defaults")
	return nil, nil
}

func (s *Shell) cmdHelp(ctx context.Context, _ []string) (interface{}, error) {
	cfg := s.Config()
	if err := s.orchestrator.Help(ctx, &cfg, s.output); err != nil {
		s.notifyUser(SeverityError, "Driver help failed: %v", err)
		return nil, err
	}
	return nil, nil
}

func (s *Shell) cmdToggleFlag(_ context.Context, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: %s <flag>", shared.CommandToggleFlag)
	}
	var value bool
	err := s.updateConfig(func(cfg *config.Config) error {
		var err error
		value, err = config.ToggleFlag(cfg, args[0])
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
