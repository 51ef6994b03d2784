package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/validation"
)

// ValidateConfig checks the structural settings of the configuration.
// Tool paths are not checked here, see ToolProblems.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateOrchestratorConfig(&cfg.Orchestrator); err != nil {
		return fmt.Errorf("YAML global config: orchestrator directive is invalid: %w", err)
	}
	if err := ValidateAutoRunConfig(&cfg.AutoRun); err != nil {
		return fmt.Errorf("YAML global config: auto_run directive is invalid: %w", err)
	}
	for _, pattern := range cfg.SourcePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("YAML global config: source_patterns contains an invalid pattern %q", pattern)
		}
	}
	return nil
}

// ValidateOrchestratorConfig checks the polling settings.
func ValidateOrchestratorConfig(orch *Orchestrator) error {
	if orch == nil {
		return fmt.Errorf("orchestrator configuration is nil")
	}
	if err := validateDuration(orch.PollInterval, "poll_interval", 10*time.Second); err != nil {
		return err
	}
	if err := validateDuration(orch.SideEffectTimeout, "side_effect_timeout", 1*time.Hour); err != nil {
		return err
	}
	if orch.PollInterval > 0 && orch.SideEffectTimeout > 0 && orch.PollInterval > orch.SideEffectTimeout {
		return fmt.Errorf("poll_interval %v exceeds side_effect_timeout %v", orch.PollInterval, orch.SideEffectTimeout)
	}
	return nil
}

// ValidateAutoRunConfig checks the auto-run kinds and the change threshold.
func ValidateAutoRunConfig(autoRun *AutoRun) error {
	if autoRun == nil {
		return fmt.Errorf("auto_run configuration is nil")
	}
	if autoRun.ChangeThreshold < 0 {
		return fmt.Errorf("change_threshold must not be negative: %d", autoRun.ChangeThreshold)
	}
	for _, raw := range autoRun.Kinds {
		if _, err := shared.ParseKind(raw); err != nil {
			return err
		}
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// ToolProblems lists every tool or specification path that fails the syntactic check.
// An empty result means a run of any kind can start in either mode.
func ToolProblems(cfg *Config) []string {
	var problems []string
	check := func(name, value string) {
		if v := validation.ValidateToolPath(value); !v.Valid {
			problems = append(problems, fmt.Sprintf("%s: %s", name, v.Reason))
		}
	}
	check("compiler path", cfg.Tools.CompilerPath)
	check("driver path", cfg.Tools.DriverPath)
	check("build script path", cfg.Tools.BuildScriptPath)
	check("taint specification path", cfg.Specs.TaintPath)
	check("typestate specification path", cfg.Specs.TypestatePath)
	if strings.TrimSpace(cfg.Tools.BuildScriptInterpreter) == "" {
		problems = append(problems, "build script interpreter: value is empty")
	}
	return problems
}

// SpecPath returns the configured specification path for kinds that need one.
func SpecPath(cfg *Config, kind shared.Kind) string {
	switch kind {
	case shared.KindTaint:
		return cfg.Specs.TaintPath
	case shared.KindTypestate:
		return cfg.Specs.TypestatePath
	}
	return ""
}
