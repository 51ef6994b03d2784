package analyse

import (
	"fmt"
	"io"
	"time"

	"github.com/swan-ide/swanctl/internal/diagnostics"
	"github.com/swan-ide/swanctl/internal/orchestrator"
	"github.com/swan-ide/swanctl/internal/results"
	"github.com/swan-ide/swanctl/pkg/shared"
)

// Report formats
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

var formatExtensions = map[string]string{
	FormatText:  "txt",
	FormatJSON:  "json",
	FormatSARIF: "sarif",
}

func isFormat(format string) bool {
	_, ok := formatExtensions[format]
	return ok
}

// reportFileName is used when --output names a folder.
func reportFileName(kind shared.Kind, format string) string {
	return fmt.Sprintf("swan-%s-report.%s", kind, formatExtensions[format])
}

// Report is the JSON form of a finished analysis.
type Report struct {
	Kind        shared.Kind          `json:"kind"`
	File        string               `json:"file"`
	ProjectRoot string               `json:"project_root,omitempty"`
	States      []orchestrator.State `json:"states"`
	Findings    []results.Finding    `json:"findings,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Output      string               `json:"output,omitempty"`
	Duration    string               `json:"duration"`
}

func newReport(outcome *orchestrator.Outcome) Report {
	report := Report{
		Kind:        outcome.Request.Kind,
		File:        outcome.Request.File,
		ProjectRoot: outcome.Request.ProjectRoot,
		States:      outcome.States,
		Findings:    outcome.Findings,
		Output:      outcome.Output,
		Duration:    outcome.Duration.Round(time.Millisecond).String(),
	}
	for _, w := range outcome.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}
	return report
}

// writeReport renders a successful outcome in the requested format.
func writeReport(w io.Writer, format string, outcome *orchestrator.Outcome) error {
	switch format {
	case FormatJSON:
		return shared.WriteJSON(w, newReport(outcome))
	case FormatSARIF:
		return diagnostics.WriteSARIF(w, outcome.Request.Kind, outcome.Findings)
	case FormatText:
		return writeText(w, outcome)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

// writeText prints one compiler-style line per location, or the raw driver output for
// kinds without findings.
func writeText(w io.Writer, outcome *orchestrator.Outcome) error {
	kind := outcome.Request.Kind
	if !kind.HasFindings() {
		_, err := io.WriteString(w, outcome.Output)
		return err
	}

	markers := diagnostics.Markers(kind, outcome.Findings...)
	for _, m := range markers {
		if _, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", m.Path, m.Line+1, m.Column+1, m.Severity, m.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s analysis: %d finding(s), %d location(s)\n", kind.DisplayName(), len(outcome.Findings), len(markers))
	return err
}
