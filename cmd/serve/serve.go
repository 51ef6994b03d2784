package serve

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/swan-ide/swanctl/internal/bridge"
	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/internal/shell"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

// RunOptionsServe holds the arguments for the serve command.
type RunOptionsServe struct {
	Addr        string
	Stdio       bool
	HistorySize int
}

var (
	AppConfig         *config.Config
	configPath        string
	logger            hclog.Logger
	serveOptions      RunOptionsServe
	exampleServeUsage = `  # Serving an editor over websocket on the default address
  swanctl serve

  # Serving an editor over websocket on a specific address
  swanctl serve --addr 127.0.0.1:7777

  # Serving an editor that talks newline-delimited JSON over stdin and stdout
  swanctl serve --stdio`
)

// ServeCmd represents the serve command.
var ServeCmd = &cobra.Command{
	Use:                   "serve [--addr HOST:PORT | --stdio]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleServeUsage,
	Short:                 "Serves an editor session that analyses Swift documents as they change",
	Long: `Serves an editor session that analyses Swift documents as they change.

The editor sends document events and commands as JSON messages and receives diagnostics,
findings tree updates, output and notifications. Settings changed through the session are
persisted to the configuration file.`,
	RunE: runServeCommand,
}

// Init initializes the global configuration variables.
func Init(cfg *config.Config, path string, l hclog.Logger) {
	AppConfig = cfg
	configPath = path
	logger = l
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	if err := validateServeArgs(&serveOptions, args); err != nil {
		logger.Error("invalid serve arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid serve arguments: %w", err), 1)
	}

	b := bridge.New(logger.Named("bridge"))
	sh, err := shell.New(shell.Options{
		Config:      AppConfig,
		ConfigPath:  configPath,
		Runner:      runner.New(logger.Named("runner")),
		Logger:      logger.Named("shell"),
		Notify:      b.Notify,
		HistorySize: serveOptions.HistorySize,
	})
	if err != nil {
		return errors.NewCommandError(fmt.Errorf("failed to start the editor session: %w", err), 1)
	}
	b.Attach(sh)
	defer b.Close()

	if err := sh.Rejected(); err != nil {
		logger.Warn("configuration rejected, runs are blocked until the settings are fixed", "error", err)
	}

	ctx := cmd.Context()
	if serveOptions.Stdio {
		logger.Info("serving editor session over stdio")
		err = b.ServeStdio(ctx, os.Stdin, os.Stdout)
	} else {
		err = b.ListenAndServe(ctx, serveOptions.Addr)
	}

	// a signal stops running analyses, a closed editor lets them finish
	if ctx.Err() != nil {
		sh.Close()
	} else {
		sh.Wait()
	}
	if err != nil {
		logger.Error("serve command failed", "error", err)
		return errors.NewCommandError(fmt.Errorf("serve command failed: %w", err), 2)
	}
	return nil
}

func validateServeArgs(options *RunOptionsServe, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
	}
	if !options.Stdio && strings.TrimSpace(options.Addr) == "" {
		return fmt.Errorf("either the 'addr' flag or the 'stdio' flag must be specified")
	}
	if options.HistorySize < 0 {
		return fmt.Errorf("the 'history' flag must not be negative")
	}
	return nil
}

func init() {
	ServeCmd.Flags().StringVar(&serveOptions.Addr, "addr", "127.0.0.1:8765", "Address of the websocket endpoint, served at "+bridge.WebSocketPath+".")
	ServeCmd.Flags().BoolVar(&serveOptions.Stdio, "stdio", false, "Talk to the editor over stdin and stdout instead of a websocket.")
	ServeCmd.Flags().IntVar(&serveOptions.HistorySize, "history", 0, "Number of documents whose run summaries are kept (0 uses the default).")
	ServeCmd.Flags().BoolP("help", "h", false, "Show help for the serve command.")
}
