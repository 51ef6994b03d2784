package diagnostics

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/swan-ide/swanctl/internal/results"
	"github.com/swan-ide/swanctl/pkg/shared"
)

const (
	toolName = "SWAN"
	toolURI  = "https://github.com/themaplelab/swan"
)

var ruleIDReplacer = regexp.MustCompile(`[^A-Za-z0-9]+`)

// RuleID derives a stable SARIF rule identifier from the kind and finding name.
func RuleID(kind shared.Kind, name string) string {
	slug := strings.Trim(ruleIDReplacer.ReplaceAllString(name, "-"), "-")
	if slug == "" {
		slug = "finding"
	}
	return fmt.Sprintf("swan.%s.%s", kind, strings.ToLower(slug))
}

// BuildSARIF converts findings into a SARIF 2.1.0 report with one result per location group.
// Groups with several locations carry them as a code flow, the first location being primary.
func BuildSARIF(kind shared.Kind, findings []results.Finding) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	for _, f := range findings {
		rule := run.AddRule(RuleID(kind, f.Name)).
			WithName(f.Name).
			WithDescription(f.Description).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: string(SeverityWarning),
			})

		for _, group := range f.Groups {
			if len(group.Locations) == 0 {
				continue
			}
			message := Message(kind, f)
			if len(group.Titles) > 0 {
				message = fmt.Sprintf("%s (%s)", message, strings.Join(group.Titles, " -> "))
			}

			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(message)).
				WithLevel(string(SeverityWarning)).
				WithLocations([]*sarif.Location{toSarifLocation(group.Locations[0])})

			if len(group.Locations) > 1 {
				threadFlow := sarif.NewThreadFlow()
				for _, loc := range group.Locations {
					threadFlow.Locations = append(threadFlow.Locations, &sarif.ThreadFlowLocation{
						Location: toSarifLocation(loc),
					})
				}
				codeFlow := sarif.NewCodeFlow()
				codeFlow.ThreadFlows = append(codeFlow.ThreadFlows, threadFlow)
				result.CodeFlows = append(result.CodeFlows, codeFlow)
			}
			run.AddResult(result)
		}
	}
	report.AddRun(run)
	return report, nil
}

// WriteSARIF writes findings as an indented SARIF document.
func WriteSARIF(w io.Writer, kind shared.Kind, findings []results.Finding) error {
	report, err := BuildSARIF(kind, findings)
	if err != nil {
		return err
	}
	if err := report.PrettyWrite(w); err != nil {
		return fmt.Errorf("error writing SARIF report: %w", err)
	}
	return nil
}

// SARIF regions are 1-based.
func toSarifLocation(loc results.Location) *sarif.Location {
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(loc.Path)).
			WithRegion(sarif.NewRegion().
				WithStartLine(loc.Line + 1).
				WithStartColumn(loc.Column + 1)),
	)
}
