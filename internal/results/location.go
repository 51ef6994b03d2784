package results

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

var locationRegex = regexp.MustCompile(`^(.*):(\d+):(\d+)$`)

// Location is a source position. Line and Column are 0-based.
type Location struct {
	Raw    string `json:"raw"`
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// ParseLocation parses "file:line:col" with 1-based line and column.
func ParseLocation(raw string) (Location, error) {
	match := locationRegex.FindStringSubmatch(raw)
	if match == nil || match[1] == "" {
		return Location{}, fmt.Errorf("location %q does not match file:line:col", raw)
	}

	line, err := strconv.Atoi(match[2])
	if err != nil {
		return Location{}, fmt.Errorf("location %q has an invalid line: %w", raw, err)
	}
	col, err := strconv.Atoi(match[3])
	if err != nil {
		return Location{}, fmt.Errorf("location %q has an invalid column: %w", raw, err)
	}
	if line < 1 || col < 1 {
		return Location{}, fmt.Errorf("location %q must use 1-based line and column", raw)
	}

	return Location{
		Raw:    raw,
		Path:   match[1],
		Line:   line - 1,
		Column: col - 1,
	}, nil
}

// String renders the location back in 1-based "file:line:col" form.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line+1, l.Column+1)
}

// resolveAgainst joins a relative location path with origin.
func (l Location) resolveAgainst(origin string) Location {
	if origin == "" || filepath.IsAbs(l.Path) {
		return l
	}
	l.Path = filepath.Join(origin, l.Path)
	return l
}
