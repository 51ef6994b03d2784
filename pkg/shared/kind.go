package shared

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind selects the analysis the driver runs, its flag and its result file.
type Kind string

const (
	KindCallGraph Kind = "call-graph"
	KindTaint     Kind = "taint"
	KindTypestate Kind = "typestate"
	KindCrypto    Kind = "crypto"
	KindDebugDump Kind = "debug-dump"
)

// SideEffectDirName is the folder the compile stage populates and the driver consumes.
const SideEffectDirName = "swan-dir"

// DebugDumpFileName is the file written by the driver for the debug-dump kind.
const DebugDumpFileName = "debug-dump.json"

// Kinds lists every supported analysis kind in menu order.
var Kinds = []Kind{KindCallGraph, KindTaint, KindTypestate, KindCrypto, KindDebugDump}

// ParseKind converts user input into a Kind. Common aliases are accepted.
func ParseKind(raw string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case "call-graph", "callgraph", "cg":
		return KindCallGraph, nil
	case "taint":
		return KindTaint, nil
	case "typestate", "type-state":
		return KindTypestate, nil
	case "crypto":
		return KindCrypto, nil
	case "debug-dump", "debug", "dump":
		return KindDebugDump, nil
	}
	return "", fmt.Errorf("unknown analysis kind %q", raw)
}

// Flag returns the driver switch that selects the kind.
func (k Kind) Flag() string {
	switch k {
	case KindCallGraph:
		return "-g"
	case KindTaint:
		return "-t"
	case KindTypestate:
		return "-e"
	case KindCrypto:
		return "--crypto"
	case KindDebugDump:
		return "-d"
	}
	return ""
}

// NeedsSpec reports whether the driver expects a specification file after the kind flag.
func (k Kind) NeedsSpec() bool {
	return k == KindTaint || k == KindTypestate
}

// ResultFileName returns the JSON file the driver writes into the side-effect directory,
// or an empty string when the kind produces none.
func (k Kind) ResultFileName() string {
	switch k {
	case KindTaint, KindTypestate, KindCrypto:
		return fmt.Sprintf("%s-results.json", k)
	case KindDebugDump:
		return DebugDumpFileName
	}
	return ""
}

// HasFindings reports whether results of the kind are rendered as findings.
func (k Kind) HasFindings() bool {
	return k == KindTaint || k == KindTypestate || k == KindCrypto
}

// DisplayName returns a human label such as "Taint" or "Call Graph".
func (k Kind) DisplayName() string {
	return cases.Title(language.Und).String(strings.ReplaceAll(string(k), "-", " "))
}

func (k Kind) String() string {
	return string(k)
}
