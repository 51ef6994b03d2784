package validation

import (
	"strings"
)

// ToolPathValidation is the outcome of a syntactic tool path check.
type ToolPathValidation struct {
	Valid  bool
	Reason string
}

// ValidateToolPath rejects blank values and values without a path separator.
// It never checks that the path exists or is executable.
func ValidateToolPath(raw string) ToolPathValidation {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ToolPathValidation{Reason: "value is empty"}
	}
	if !strings.ContainsAny(value, `/\`) {
		return ToolPathValidation{Reason: "value contains no path separator"}
	}
	return ToolPathValidation{Valid: true}
}
