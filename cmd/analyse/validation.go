package analyse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/files"
)

// validateAnalyseArgs validates the arguments provided to the analyse command and returns
// the analysis kind and the absolute path of the target file.
func validateAnalyseArgs(options *RunOptionsAnalyse, args []string) (shared.Kind, string, error) {
	kind, err := shared.ParseKind(options.Kind)
	if err != nil {
		return "", "", err
	}

	if !isFormat(options.ReportFormat) {
		return "", "", fmt.Errorf("unsupported report format %q", options.ReportFormat)
	}
	if !kind.HasFindings() && options.ReportFormat == FormatSARIF {
		return "", "", fmt.Errorf("%s analysis produces no findings for a SARIF report", kind)
	}

	if options.SpecPath != "" && !kind.NeedsSpec() {
		return "", "", fmt.Errorf("%s analysis takes no specification file", kind)
	}

	for _, flag := range options.Flags {
		if _, ok := config.LookupFlag(flag); !ok {
			return "", "", fmt.Errorf("unknown driver flag %q", flag)
		}
	}

	if options.Timeout < 0 {
		return "", "", fmt.Errorf("the 'timeout' flag must not be negative")
	}

	if len(args) != 1 {
		return "", "", fmt.Errorf("exactly one target file must be specified")
	}

	target, err := filepath.Abs(strings.TrimSpace(args[0]))
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve the target path: %w", err)
	}
	if err := files.ValidatePath(target); err != nil {
		return "", "", fmt.Errorf("the target %w", err)
	}

	return kind, target, nil
}

// applyOverrides merges per-run command-line overrides into cfg.
func applyOverrides(cfg *config.Config, options *RunOptionsAnalyse, kind shared.Kind) error {
	if options.SpecPath != "" {
		if err := config.Set(cfg, fmt.Sprintf("specs.%s_path", kind), options.SpecPath); err != nil {
			return err
		}
	}
	for _, flag := range options.Flags {
		spec, _ := config.LookupFlag(flag)
		if err := config.Set(cfg, "flags."+spec.Key, "true"); err != nil {
			return err
		}
	}
	return nil
}
