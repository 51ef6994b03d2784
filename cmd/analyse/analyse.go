package analyse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/swan-ide/swanctl/internal/orchestrator"
	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
	"github.com/swan-ide/swanctl/pkg/shared/files"
)

// RunOptionsAnalyse holds the arguments for the analyse command.
type RunOptionsAnalyse struct {
	Kind           string
	ReportFormat   string
	OutputPath     string
	SpecPath       string
	Flags          []string
	FailOnFindings bool
	Timeout        time.Duration
}

// Exit codes of the analyse command.
const (
	ExitInvalidArguments = 1
	ExitAnalysisFailed   = 2
	ExitFindingsReported = 3
)

// Global variables for configuration and command arguments
var (
	AppConfig           *config.Config
	configErr           error
	logger              hclog.Logger
	analyseOptions      RunOptionsAnalyse
	exampleAnalyseUsage = `  # Running a taint analysis on a single Swift file
  swanctl analyse --kind taint /path/to/main.swift

  # Running a typestate analysis with a specific specification file
  swanctl analyse --kind typestate --spec /path/to/file-open-close.json /path/to/main.swift

  # Writing the findings of a file inside a Swift package as a SARIF report
  swanctl analyse --kind taint --format sarif --output /path/to/reports /path/to/Sources/App/main.swift

  # Printing the call graph with extra driver switches
  swanctl analyse --kind call-graph --flag names --flag single_threaded /path/to/main.swift`
)

// AnalyseCmd represents the analyse command.
var AnalyseCmd = &cobra.Command{
	Use:                   "analyse [--kind/-k KIND] [--format/-f text|json|sarif] [--output/-o PATH] [--spec PATH] [--flag FLAG...] PATH",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleAnalyseUsage,
	Short:                 "Runs one SWAN analysis on a Swift file and reports the findings",
	Long: `Runs one SWAN analysis on a Swift file and reports the findings.

When the file belongs to a Swift package the whole package is built with the configured build
script, otherwise the file is compiled on its own. Compiler and driver output goes to stderr.

Exit codes:
  1 invalid arguments or configuration
  2 the analysis failed
  3 findings were reported and --fail-on-findings is set`,
	RunE: runAnalyseCommand,
}

// Init initializes the global configuration variables.
func Init(cfg *config.Config, validationErr error, l hclog.Logger) {
	AppConfig = cfg
	configErr = validationErr
	logger = l
}

// runAnalyseCommand executes the analyse command.
func runAnalyseCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	kind, file, err := validateAnalyseArgs(&analyseOptions, args)
	if err != nil {
		logger.Error("invalid analyse arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid analyse arguments: %w", err), ExitInvalidArguments)
	}

	cfg := AppConfig.Snapshot()
	if err := applyOverrides(&cfg, &analyseOptions, kind); err != nil {
		logger.Error("invalid analyse arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid analyse arguments: %w", err), ExitInvalidArguments)
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		logger.Error("configuration rejected", "error", err, "loaded", configErr)
		return errors.NewCommandError(fmt.Errorf("configuration rejected: %w", err), ExitInvalidArguments)
	}

	ctx := cmd.Context()
	if analyseOptions.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, analyseOptions.Timeout)
		defer cancel()
	}

	o := orchestrator.New(runner.New(logger.Named("runner")), logger.Named("orchestrator"), os.Stderr)
	token := orchestrator.NewTokens().Begin(file)
	outcome := o.Run(ctx, orchestrator.NewRequest(kind, file, &cfg, token))
	logger.Debug("analysis finished", "kind", kind, "states", outcome.States, "duration", outcome.Duration)

	if outcome.Err != nil {
		logger.Error("analyse command failed", "error", outcome.Err)
		return errors.NewCommandError(fmt.Errorf("analysis failed: %w", outcome.Err), ExitAnalysisFailed)
	}

	var report bytes.Buffer
	if err := writeReport(&report, analyseOptions.ReportFormat, outcome); err != nil {
		logger.Error("failed to render report", "error", err)
		return errors.NewCommandError(err, ExitAnalysisFailed)
	}

	if analyseOptions.OutputPath == "" {
		if _, err := os.Stdout.Write(report.Bytes()); err != nil {
			return errors.NewCommandError(fmt.Errorf("failed to write report: %w", err), ExitAnalysisFailed)
		}
	} else {
		path, err := saveReport(analyseOptions.OutputPath, reportFileName(kind, analyseOptions.ReportFormat), report.Bytes())
		if err != nil {
			logger.Error("failed to write report", "error", err)
			return errors.NewCommandError(err, ExitAnalysisFailed)
		}
		logger.Info("report saved", "path", path)
	}

	if analyseOptions.FailOnFindings && len(outcome.Findings) > 0 {
		return errors.NewCommandError(fmt.Errorf("%d finding(s) reported", len(outcome.Findings)), ExitFindingsReported)
	}
	logger.Info("analyse command completed successfully", "findings", len(outcome.Findings))
	return nil
}

func saveReport(outputPath, nameTemplate string, data []byte) (string, error) {
	path, folder, err := files.DetermineFileFullPath(outputPath, nameTemplate)
	if err != nil {
		return "", err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return "", err
	}
	if err := files.WriteJsonFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Initialize flags for the analyse command.
func init() {
	AnalyseCmd.Flags().StringVarP(&analyseOptions.Kind, "kind", "k", string(shared.KindTaint), "Analysis to run: call-graph, taint, typestate, crypto or debug-dump.")
	AnalyseCmd.Flags().StringVarP(&analyseOptions.ReportFormat, "format", "f", FormatText, "Format of the report: text, json or sarif.")
	AnalyseCmd.Flags().BoolP("help", "h", false, "Show help for the analyse command.")
	AnalyseCmd.Flags().StringVarP(&analyseOptions.OutputPath, "output", "o", "", "Path to the output file or directory for the report. Defaults to stdout.")
	AnalyseCmd.Flags().StringVar(&analyseOptions.SpecPath, "spec", "", "Specification file overriding the configured one for taint and typestate analyses.")
	AnalyseCmd.Flags().StringSliceVar(&analyseOptions.Flags, "flag", nil, "Driver switch to enable for this run, by settings key (e.g. names, single_threaded).")
	AnalyseCmd.Flags().BoolVar(&analyseOptions.FailOnFindings, "fail-on-findings", false, "Exit with code 3 when findings are reported.")
	AnalyseCmd.Flags().DurationVar(&analyseOptions.Timeout, "timeout", 0, "Abort the analysis after this duration, e.g. 5m.")
}
