package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/swan-ide/swanctl/cmd/analyse"
	driverhelp "github.com/swan-ide/swanctl/cmd/driver-help"
	"github.com/swan-ide/swanctl/cmd/serve"
	"github.com/swan-ide/swanctl/cmd/settings"
	"github.com/swan-ide/swanctl/cmd/version"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
	"github.com/swan-ide/swanctl/pkg/shared/logger"
)

var (
	cfgFile   string
	AppConfig *config.Config
	Logger    hclog.Logger
	rootCmd   = &cobra.Command{
		Use:                   "swanctl [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "swanctl drives the SWAN static analyser for Swift sources.",
		Long: `swanctl compiles Swift sources with the SWAN compiler, runs the SWAN driver on the
	produced intermediate files and turns the result files into diagnostics and findings.
	It can run a single analysis from the command line or serve an editor session.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.swan/config.yml)")
	rootCmd.AddCommand(analyse.AnalyseCmd)
	rootCmd.AddCommand(serve.ServeCmd)
	rootCmd.AddCommand(settings.SettingsCmd)
	rootCmd.AddCommand(driverhelp.DriverHelpCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		var cmdErr *errors.CommandError
		if stderrors.As(err, &cmdErr) {
			return cmdErr.ExitCode
		}
		return 1
	}
	return 0
}

func initConfig() {
	// a missing .env file is fine
	_ = godotenv.Load()

	var err error
	if cfgFile == "" {
		cfgFile, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve config path - %v\n", err)
			os.Exit(1)
		}
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing config file function is crashed - %v\n", err)
		os.Exit(1)
	}
	Logger = logger.NewLogger(AppConfig, "core")

	// an invalid configuration is reported by the commands that need it, so that
	// the settings command can still repair it
	configErr := config.ValidateConfig(AppConfig)
	if configErr != nil {
		Logger.Debug("configuration is invalid", "path", cfgFile, "error", configErr)
	}

	analyse.Init(AppConfig, configErr, Logger.Named("analyse"))
	serve.Init(AppConfig, cfgFile, Logger.Named("serve"))
	settings.Init(AppConfig, cfgFile, Logger.Named("settings"))
	driverhelp.Init(AppConfig, Logger.Named("driver-help"))
	version.Init(AppConfig)
}
