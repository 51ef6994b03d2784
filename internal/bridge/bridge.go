package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/swan-ide/swanctl/internal/diagnostics"
	"github.com/swan-ide/swanctl/internal/findingstree"
	"github.com/swan-ide/swanctl/internal/shell"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

// Message types exchanged with the editor.
const (
	TypeEvent   = "event"
	TypeCommand = "command"
	TypePing    = "ping"

	TypeDiagnostics  = "diagnostics"
	TypeTree         = "tree"
	TypeOutput       = "output"
	TypeNotification = "notification"
	TypeResult       = "result"
	TypeError        = "error"
	TypePong         = "pong"
)

// Error codes of outbound error messages that do not come from an analysis run.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeInternal        = "internal"
)

const sessionBuffer = 32

// Inbound is a message sent by the editor. Event messages carry the shell.Event fields
// at the top level.
type Inbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	shell.Event
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// Outbound is a message sent to the editor. A diagnostics message without markers
// clears the document.
type Outbound struct {
	Type     string               `json:"type"`
	ID       string               `json:"id,omitempty"`
	Document string               `json:"document,omitempty"`
	Markers  []diagnostics.Marker `json:"markers,omitempty"`
	Tree     []*findingstree.Node `json:"tree,omitempty"`
	Text     string               `json:"text,omitempty"`
	Severity shell.Severity       `json:"severity,omitempty"`
	Result   interface{}          `json:"result,omitempty"`
	Code     string               `json:"code,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Bridge connects editor sessions to a shell. Shell state changes are broadcast to every
// connected session.
type Bridge struct {
	logger hclog.Logger
	shell  *shell.Shell

	mu       sync.Mutex
	sessions map[*session]struct{}
	detach   []func()
}

type session struct {
	writeCh chan Outbound
}

// New creates a bridge. Its Notify method is meant to be passed to shell.Options before
// the shell is attached.
func New(logger hclog.Logger) *Bridge {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Bridge{
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

// Attach subscribes the bridge to the shell's diagnostics, tree and output channel.
func (b *Bridge) Attach(sh *shell.Shell) {
	b.mu.Lock()
	b.shell = sh
	b.mu.Unlock()

	sh.Diagnostics().OnChange(func(uri string, markers []diagnostics.Marker) {
		b.broadcast(Outbound{Type: TypeDiagnostics, Document: uri, Markers: markers})
	})
	unsubscribeTree := sh.Tree().Subscribe(func() {
		b.broadcast(Outbound{Type: TypeTree, Tree: sh.Tree().Snapshot()})
	})
	unsubscribeOutput := sh.Output().Subscribe(func(text string) {
		b.broadcast(Outbound{Type: TypeOutput, Text: text})
	})

	b.mu.Lock()
	b.detach = append(b.detach, unsubscribeTree, unsubscribeOutput, func() { sh.Diagnostics().OnChange(nil) })
	b.mu.Unlock()
}

// Close drops the shell subscriptions.
func (b *Bridge) Close() {
	b.mu.Lock()
	detach := b.detach
	b.detach = nil
	b.mu.Unlock()
	for _, fn := range detach {
		fn()
	}
}

// Notify forwards a user notification to every session.
func (b *Bridge) Notify(severity shell.Severity, message string) {
	b.broadcast(Outbound{Type: TypeNotification, Severity: severity, Message: message})
}

func (b *Bridge) register() *session {
	s := &session{writeCh: make(chan Outbound, sessionBuffer)}
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	sh := b.shell
	b.mu.Unlock()

	// a new session starts from the current state
	if sh != nil {
		push(s.writeCh, Outbound{Type: TypeTree, Tree: sh.Tree().Snapshot()})
		for _, uri := range sh.Diagnostics().URIs() {
			push(s.writeCh, Outbound{Type: TypeDiagnostics, Document: uri, Markers: sh.Diagnostics().Get(uri)})
		}
	}
	return s
}

func (b *Bridge) unregister(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s)
}

// Sessions returns the number of connected sessions.
func (b *Bridge) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Bridge) broadcast(out Outbound) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.sessions {
		push(s.writeCh, out)
	}
}

// Dispatch handles one inbound message and returns the reply, if any.
func (b *Bridge) Dispatch(ctx context.Context, in Inbound) (Outbound, bool) {
	b.mu.Lock()
	sh := b.shell
	b.mu.Unlock()
	if sh == nil {
		return errorReply(in.ID, CodeInternal, fmt.Errorf("no shell attached")), true
	}

	msgType := strings.ToLower(strings.TrimSpace(in.Type))
	switch msgType {
	case "":
		return errorReply(in.ID, CodeInvalidArgument, fmt.Errorf("type is required")), true
	case TypePing:
		return Outbound{Type: TypePong, ID: in.ID}, true
	case TypeEvent:
		if err := sh.HandleEvent(ctx, in.Event); err != nil {
			return errorReply(in.ID, CodeInvalidArgument, err), true
		}
		if in.ID == "" {
			return Outbound{}, false
		}
		return Outbound{Type: TypeResult, ID: in.ID}, true
	case TypeCommand:
		result, err := sh.Execute(ctx, strings.TrimSpace(in.Command), in.Args)
		if err != nil {
			return errorReply(in.ID, CodeInvalidArgument, err), true
		}
		return Outbound{Type: TypeResult, ID: in.ID, Result: result}, true
	}
	return errorReply(in.ID, CodeInvalidArgument, fmt.Errorf("unsupported type: %s", msgType)), true
}

// errorReply reports analysis failures with their error kind as code.
func errorReply(id, code string, err error) Outbound {
	if kind, ok := errors.KindOf(err); ok {
		code = string(kind)
	}
	return Outbound{Type: TypeError, ID: id, Code: code, Message: err.Error()}
}

// push enqueues out, dropping the oldest pending message when the session lags behind.
func push(writeCh chan Outbound, out Outbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
