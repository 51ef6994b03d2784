package shell

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/swan-ide/swanctl/internal/diagnostics"
	"github.com/swan-ide/swanctl/internal/findingstree"
	"github.com/swan-ide/swanctl/internal/orchestrator"
	"github.com/swan-ide/swanctl/internal/results"
	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

// Severity of a user notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NotifyFunc shows a message to the user.
type NotifyFunc func(severity Severity, message string)

// Options configure a Shell.
type Options struct {
	Config     *config.Config
	ConfigPath string // settings are persisted here when set
	Runner     runner.Runner
	Logger     hclog.Logger
	Notify     NotifyFunc
	// HistorySize is the number of documents whose runs are remembered.
	HistorySize int
}

// Shell owns the configuration, the findings tree and the diagnostics of an editor session,
// and turns editor events and commands into analysis runs.
type Shell struct {
	mu       sync.Mutex
	cfg      *config.Config
	rejected error
	path     string

	logger       hclog.Logger
	orchestrator *orchestrator.Orchestrator
	tokens       *orchestrator.Tokens
	tree         *findingstree.Tree
	sink         *diagnostics.Sink
	output       *Output
	history      *History
	notify       NotifyFunc
	commands     map[string]commandFunc

	activeDocument string
	changeCounts   map[string]int

	// applyMu orders the token check with applying results.
	applyMu sync.Mutex
	runs    sync.WaitGroup

	// runs live as long as the shell, not as long as the request that started them
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Shell. A configuration that fails validation is kept but rejected:
// runs are refused until a valid configuration is applied.
func New(opts Options) (*Shell, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("shell requires a process runner")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	history, err := NewHistory(opts.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create run history: %w", err)
	}

	s := &Shell{
		cfg:          cfg,
		path:         opts.ConfigPath,
		logger:       logger,
		tokens:       orchestrator.NewTokens(),
		sink:         diagnostics.NewSink(),
		output:       NewOutput(),
		history:      history,
		notify:       opts.Notify,
		changeCounts: make(map[string]int),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.orchestrator = orchestrator.New(opts.Runner, logger.Named("orchestrator"), s.output)
	s.tree = findingstree.New(s.Config)
	s.commands = s.registerCommands()

	if err := config.ValidateConfig(cfg); err != nil {
		s.rejected = err
		logger.Warn("configuration rejected", "error", err)
	}
	return s, nil
}

// Config returns a snapshot of the current configuration.
func (s *Shell) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Snapshot()
}

// Rejected returns the validation error that blocks runs, or nil.
func (s *Shell) Rejected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

func (s *Shell) Tree() *findingstree.Tree {
	return s.tree
}

func (s *Shell) Diagnostics() *diagnostics.Sink {
	return s.sink
}

func (s *Shell) Output() *Output {
	return s.output
}

func (s *Shell) History() *History {
	return s.history
}

// Wait blocks until every started run has finished.
func (s *Shell) Wait() {
	s.runs.Wait()
}

// Close stops the compiler and driver processes of running analyses and waits for the
// runs to finish. No run can be started afterwards.
func (s *Shell) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.runs.Wait()
}

func (s *Shell) notifyUser(severity Severity, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	switch severity {
	case SeverityError:
		s.logger.Error(message)
	case SeverityWarning:
		s.logger.Warn(message)
	default:
		s.logger.Info(message)
	}
	if s.notify != nil {
		s.notify(severity, message)
	}
}

// DocumentPath converts a file URI or a plain path into a filesystem path.
func DocumentPath(document string) string {
	if !strings.HasPrefix(document, "file:") {
		return document
	}
	u, err := url.Parse(document)
	if err != nil || u.Path == "" {
		return strings.TrimPrefix(document, "file://")
	}
	return u.Path
}

// Start launches the given kinds on document, one after another, under a new run token.
// Earlier runs of the same document are superseded: their results are discarded on arrival.
// ctx only gates the start; the run itself is cancelled by Close, not by ctx.
func (s *Shell) Start(ctx context.Context, document string, kinds ...shared.Kind) (orchestrator.Token, error) {
	if len(kinds) == 0 {
		return orchestrator.Token{}, fmt.Errorf("no analysis kind selected")
	}
	if err := ctx.Err(); err != nil {
		return orchestrator.Token{}, err
	}

	s.mu.Lock()
	if err := s.ctx.Err(); err != nil {
		s.mu.Unlock()
		return orchestrator.Token{}, fmt.Errorf("shell is closed: %w", err)
	}
	if s.rejected != nil {
		rejected := s.rejected
		s.mu.Unlock()
		s.notifyUser(SeverityError, "Configuration rejected, fix the settings before running an analysis: %v", rejected)
		return orchestrator.Token{}, errors.New(errors.ConfigurationInvalid, string(orchestrator.Idle), rejected)
	}
	snapshot := s.cfg.Snapshot()
	token := s.tokens.Begin(document)
	s.runs.Add(1)
	s.mu.Unlock()

	s.logger.Debug("run started", "document", document, "token", token.ID, "kinds", kinds)
	go s.execute(s.ctx, document, token, snapshot, kinds)
	return token, nil
}

// Run is Start followed by waiting for that run.
func (s *Shell) Run(ctx context.Context, document string, kinds ...shared.Kind) error {
	if _, err := s.Start(ctx, document, kinds...); err != nil {
		return err
	}
	s.Wait()
	return nil
}

func (s *Shell) execute(ctx context.Context, document string, token orchestrator.Token, cfg config.Config, kinds []shared.Kind) {
	defer s.runs.Done()

	path := DocumentPath(document)
	var (
		markers  []diagnostics.Marker
		findings []results.Finding
		applied  bool
		failed   = make(map[shared.Kind]bool)
	)

	for _, kind := range kinds {
		outcome := s.orchestrator.Run(ctx, orchestrator.NewRequest(kind, path, &cfg, token))
		summary := summarize(document, outcome)

		if !s.tokens.IsCurrent(token) {
			summary.Discarded = true
			s.history.Record(summary)
			s.logger.Debug("discarding superseded run", "document", document, "token", token.ID, "kind", kind)
			return
		}
		s.history.Record(summary)

		if outcome.Err != nil {
			s.reportFailure(kind, outcome.Err)
			failed[kind] = true
			continue
		}
		if kind.HasFindings() {
			markers = append(markers, diagnostics.Markers(kind, outcome.Findings...)...)
			findings = append(findings, outcome.Findings...)
			applied = true
		}
		s.notifyUser(SeverityInfo, "%s analysis finished: %d finding(s)", kind.DisplayName(), len(outcome.Findings))
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if !s.tokens.Finish(token) {
		s.logger.Debug("discarding superseded run", "document", document, "token", token.ID)
		return
	}
	if applied {
		// failed kinds keep their markers from earlier runs
		for _, m := range s.sink.Get(document) {
			if failed[m.Kind] {
				markers = append(markers, m)
			}
		}
		s.sink.Replace(document, markers)
		s.tree.AddFindings(findings)
	}
}

// reportFailure surfaces a failed run. Prior diagnostics and findings are left untouched.
func (s *Shell) reportFailure(kind shared.Kind, err error) {
	severity := SeverityError
	if k, ok := errors.KindOf(err); ok && k.Transient() {
		severity = SeverityWarning
	}
	s.notifyUser(severity, "%s analysis failed: %v", kind.DisplayName(), err)
}
