package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

// LocationGroup is one titled set of locations, e.g. one taint flow or one typestate violation.
type LocationGroup struct {
	Titles    []string   `json:"titles"`
	Locations []Location `json:"locations"`
}

// Finding is an analysis result independent of the analysis kind.
type Finding struct {
	Kind        shared.Kind     `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Advice      string          `json:"advice"`
	Groups      []LocationGroup `json:"groups"`
}

// LocationCount returns the number of locations across all groups.
func (f Finding) LocationCount() int {
	n := 0
	for _, g := range f.Groups {
		n += len(g.Locations)
	}
	return n
}

// Report is the outcome of parsing one result file. Warnings hold per-item failures
// that did not prevent sibling items from being parsed.
type Report struct {
	Findings []Finding
	Warnings []error
}

func (r *Report) warn(kind errors.ParseErrorKind, item string, err error) {
	r.Warnings = append(r.Warnings, errors.NewParseError(kind, item, err))
}

type rawHeader struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Advice      *string `json:"advice"`
}

func (h rawHeader) missing() []string {
	var missing []string
	if h.Name == nil {
		missing = append(missing, "name")
	}
	if h.Description == nil {
		missing = append(missing, "description")
	}
	if h.Advice == nil {
		missing = append(missing, "advice")
	}
	return missing
}

type rawTaintResult struct {
	rawHeader
	Paths *[]json.RawMessage `json:"paths"`
}

type rawTaintPath struct {
	Source *struct {
		Name string `json:"name"`
	} `json:"source"`
	Sink *struct {
		Name string `json:"name"`
	} `json:"sink"`
	Path *[]string `json:"path"`
}

type rawErrorResult struct {
	rawHeader
	Errors *[]json.RawMessage `json:"errors"`
}

type rawError struct {
	Message *string `json:"message"`
	Pos     *string `json:"pos"`
}

// Parse converts a driver result file into findings. origin is the folder the analysis ran in;
// relative typestate and crypto positions are resolved against it.
func Parse(data []byte, kind shared.Kind, origin string) (Report, error) {
	var report Report

	if !kind.HasFindings() {
		return report, fmt.Errorf("analysis kind %q has no findings to parse", kind)
	}

	// A valid document that is not an array is as unusable as broken JSON.
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return report, errors.NewParseError(errors.MalformedJSON, "", err)
	}
	if items == nil {
		return report, errors.NewParseError(errors.MalformedJSON, "", fmt.Errorf("top level is null, expected an array"))
	}

	failed := 0
	for i, item := range items {
		label := fmt.Sprintf("[%d]", i)
		var (
			finding Finding
			ok      bool
		)
		switch kind {
		case shared.KindTaint:
			finding, ok = parseTaint(&report, label, item)
		default:
			finding, ok = parseErrors(&report, label, item, origin)
		}
		if !ok {
			failed++
			continue
		}
		finding.Kind = kind
		report.Findings = append(report.Findings, finding)
	}

	if failed > 0 && len(report.Findings) == 0 {
		return report, errors.NewParseError(errors.UnexpectedShape, "", fmt.Errorf("none of %d result objects has the %s shape", failed, kind))
	}
	return report, nil
}

func parseTaint(report *Report, label string, item json.RawMessage) (Finding, bool) {
	var raw rawTaintResult
	if err := json.Unmarshal(item, &raw); err != nil {
		report.warn(errors.UnexpectedShape, label, err)
		return Finding{}, false
	}
	missing := raw.missing()
	if raw.Paths == nil {
		missing = append(missing, "paths")
	}
	if len(missing) > 0 {
		report.warn(errors.UnexpectedShape, label, fmt.Errorf("missing fields %v", missing))
		return Finding{}, false
	}

	finding := Finding{Name: *raw.Name, Description: *raw.Description, Advice: *raw.Advice}
	for j, entry := range *raw.Paths {
		entryLabel := fmt.Sprintf("%s.paths[%d]", label, j)
		var path rawTaintPath
		if err := json.Unmarshal(entry, &path); err != nil {
			report.warn(errors.UnexpectedShape, entryLabel, err)
			continue
		}
		if path.Source == nil || path.Sink == nil || path.Path == nil {
			report.warn(errors.UnexpectedShape, entryLabel, fmt.Errorf("path entry needs source, sink and path"))
			continue
		}

		group := LocationGroup{Titles: []string{path.Source.Name, path.Sink.Name}}
		for k, rawLoc := range *path.Path {
			loc, err := ParseLocation(rawLoc)
			if err != nil {
				report.warn(errors.BadLocation, fmt.Sprintf("%s.path[%d]", entryLabel, k), err)
				continue
			}
			group.Locations = append(group.Locations, loc)
		}
		if len(group.Locations) == 0 {
			report.warn(errors.BadLocation, entryLabel, fmt.Errorf("path entry has no usable locations"))
			continue
		}
		finding.Groups = append(finding.Groups, group)
	}
	return finding, true
}

func parseErrors(report *Report, label string, item json.RawMessage, origin string) (Finding, bool) {
	var raw rawErrorResult
	if err := json.Unmarshal(item, &raw); err != nil {
		report.warn(errors.UnexpectedShape, label, err)
		return Finding{}, false
	}
	missing := raw.missing()
	if raw.Errors == nil {
		missing = append(missing, "errors")
	}
	if len(missing) > 0 {
		report.warn(errors.UnexpectedShape, label, fmt.Errorf("missing fields %v", missing))
		return Finding{}, false
	}

	finding := Finding{Name: *raw.Name, Description: *raw.Description, Advice: *raw.Advice}
	for j, entry := range *raw.Errors {
		entryLabel := fmt.Sprintf("%s.errors[%d]", label, j)
		var e rawError
		if err := json.Unmarshal(entry, &e); err != nil {
			report.warn(errors.UnexpectedShape, entryLabel, err)
			continue
		}
		if e.Message == nil || e.Pos == nil {
			report.warn(errors.UnexpectedShape, entryLabel, fmt.Errorf("error entry needs message and pos"))
			continue
		}
		loc, err := ParseLocation(*e.Pos)
		if err != nil {
			report.warn(errors.BadLocation, entryLabel+".pos", err)
			continue
		}
		finding.Groups = append(finding.Groups, LocationGroup{
			Titles:    []string{*e.Message},
			Locations: []Location{loc.resolveAgainst(origin)},
		})
	}
	return finding, true
}

// ResultFilePath returns where the driver writes results of kind inside sideEffectDir.
func ResultFilePath(sideEffectDir string, kind shared.Kind) string {
	return filepath.Join(sideEffectDir, kind.ResultFileName())
}

// ReadResultFile reads the conventional result file of kind from sideEffectDir.
func ReadResultFile(sideEffectDir string, kind shared.Kind) ([]byte, string, error) {
	path := ResultFilePath(sideEffectDir, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("error reading %s: %w", kind.ResultFileName(), err)
	}
	return data, path, nil
}

// FormatDebugDump pretty-prints a debug dump for the output channel.
func FormatDebugDump(data []byte) (string, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return "", errors.NewParseError(errors.MalformedJSON, "", err)
	}
	return out.String(), nil
}
