package driverhelp

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/swan-ide/swanctl/internal/orchestrator"
	"github.com/swan-ide/swanctl/internal/runner"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

var (
	AppConfig *config.Config
	logger    hclog.Logger
)

// DriverHelpCmd prints the usage of the configured SWAN driver.
var DriverHelpCmd = &cobra.Command{
	Use:                   "driver-help",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Args:                  cobra.NoArgs,
	Short:                 "Prints the usage of the configured SWAN driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		o := orchestrator.New(runner.New(logger.Named("runner")), logger, os.Stderr)
		if err := o.Help(cmd.Context(), AppConfig, cmd.OutOrStdout()); err != nil {
			logger.Error("driver help failed", "error", err)
			return errors.NewCommandError(fmt.Errorf("driver help failed: %w", err), 2)
		}
		return nil
	},
}

// Init initializes the global configuration variables.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}
