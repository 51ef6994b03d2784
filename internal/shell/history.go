package shell

import (
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/swan-ide/swanctl/internal/orchestrator"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

const (
	defaultHistoryDocuments = 256
	runsPerDocument         = 10
)

// RunSummary describes one finished run for the "Analysis Summary" view.
type RunSummary struct {
	ID         string             `json:"id"`
	Document   string             `json:"document"`
	Kind       shared.Kind        `json:"kind"`
	Mode       orchestrator.Mode  `json:"mode"`
	State      orchestrator.State `json:"state"`
	Findings   int                `json:"findings"`
	Locations  int                `json:"locations"`
	Warnings   int                `json:"warnings"`
	ErrorKind  errors.Kind        `json:"errorKind,omitempty"`
	Error      string             `json:"error,omitempty"`
	Discarded  bool               `json:"discarded,omitempty"`
	FinishedAt time.Time          `json:"finishedAt"`
	Duration   time.Duration      `json:"duration"`
}

func summarize(document string, outcome *orchestrator.Outcome) RunSummary {
	summary := RunSummary{
		ID:         outcome.Request.ID,
		Document:   document,
		Kind:       outcome.Request.Kind,
		Mode:       outcome.Request.Mode(),
		State:      outcome.State(),
		Findings:   len(outcome.Findings),
		Warnings:   len(outcome.Warnings),
		FinishedAt: time.Now(),
		Duration:   outcome.Duration,
	}
	for _, f := range outcome.Findings {
		summary.Locations += f.LocationCount()
	}
	if outcome.Err != nil {
		summary.Error = outcome.Err.Error()
		summary.ErrorKind, _ = errors.KindOf(outcome.Err)
	}
	return summary
}

// String renders the summary as one output channel line.
func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-10s %-9s %s", s.FinishedAt.Format(time.RFC3339), s.Kind, s.State, s.Document)
	if s.Error != "" {
		fmt.Fprintf(&b, "  error: %s", s.Error)
	} else {
		fmt.Fprintf(&b, "  findings: %d, locations: %d", s.Findings, s.Locations)
	}
	if s.Warnings > 0 {
		fmt.Fprintf(&b, ", warnings: %d", s.Warnings)
	}
	if s.Discarded {
		b.WriteString(" (superseded)")
	}
	return b.String()
}

// History keeps the latest runs of the most recently analysed documents.
type History struct {
	mu    sync.Mutex
	cache *lru.Cache[string, []RunSummary]
}

// NewHistory creates a history remembering up to size documents.
func NewHistory(size int) (*History, error) {
	if size <= 0 {
		size = defaultHistoryDocuments
	}
	cache, err := lru.New[string, []RunSummary](size)
	if err != nil {
		return nil, err
	}
	return &History{cache: cache}, nil
}

// Record appends summary to its document, keeping the newest runs only.
func (h *History) Record(summary RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	runs, _ := h.cache.Get(summary.Document)
	runs = append(append([]RunSummary(nil), runs...), summary)
	if len(runs) > runsPerDocument {
		runs = runs[len(runs)-runsPerDocument:]
	}
	h.cache.Add(summary.Document, runs)
}

// Document returns the runs of document, oldest first.
func (h *History) Document(document string) []RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	runs, _ := h.cache.Peek(document)
	return append([]RunSummary(nil), runs...)
}

// All returns the runs of every remembered document, least recently analysed first.
func (h *History) All() []RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	var all []RunSummary
	for _, document := range h.cache.Keys() {
		runs, _ := h.cache.Peek(document)
		all = append(all, runs...)
	}
	return all
}
