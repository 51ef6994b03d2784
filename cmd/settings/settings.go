package settings

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

var (
	AppConfig            *config.Config
	configPath           string
	logger               hclog.Logger
	exampleSettingsUsage = `  # Showing the effective settings and any problems with them
  swanctl settings show

  # Pointing swanctl at the SWAN tools
  swanctl settings set tools.compiler_path /opt/swan/bin/swan-swiftc
  swanctl settings set tools.driver_path /opt/swan/lib/driver.jar

  # Setting the specification file of the typestate analysis
  swanctl settings spec typestate /path/to/file-open-close.json

  # Flipping a driver switch
  swanctl settings toggle single_threaded

  # Restoring the defaults
  swanctl settings reset`
)

// SettingsCmd represents the settings command.
var SettingsCmd = &cobra.Command{
	Use:                   "settings {show | path | set KEY VALUE | spec KIND PATH | toggle FLAG | reset}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleSettingsUsage,
	Short:                 "Shows and edits the persisted swanctl configuration",
}

// Init initializes the global configuration variables.
func Init(cfg *config.Config, path string, l hclog.Logger) {
	AppConfig = cfg
	configPath = path
	logger = l
}

func init() {
	SettingsCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return show(cmd.OutOrStdout(), AppConfig)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), configPath)
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Set a single setting, e.g. tools.driver_path or auto_run.kinds (comma separated)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return update(cmd.OutOrStdout(), AppConfig, configPath, func(cfg *config.Config) error {
					return config.Set(cfg, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "spec KIND PATH",
			Short: "Set the specification file of the taint or typestate analysis",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return update(cmd.OutOrStdout(), AppConfig, configPath, func(cfg *config.Config) error {
					return setSpec(cfg, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "toggle FLAG",
			Short: "Flip a boolean driver switch",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return update(cmd.OutOrStdout(), AppConfig, configPath, func(cfg *config.Config) error {
					value, err := config.ToggleFlag(cfg, args[0])
					if err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", args[0], value)
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return update(cmd.OutOrStdout(), AppConfig, configPath, func(cfg *config.Config) error {
					*cfg = *config.Default()
					return nil
				})
			},
		},
	)
}

// show prints cfg as YAML followed by the problems that would block a run.
func show(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewCommandError(fmt.Errorf("failed to encode config: %w", err), 1)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	printProblems(w, cfg)
	return nil
}

func printProblems(w io.Writer, cfg *config.Config) {
	var problems []string
	if err := config.ValidateConfig(cfg); err != nil {
		problems = append(problems, err.Error())
	}
	problems = append(problems, config.ToolProblems(cfg)...)
	if len(problems) == 0 {
		return
	}
	fmt.Fprintf(w, "\nproblems:\n  - %s\n", strings.Join(problems, "\n  - "))
}

func setSpec(cfg *config.Config, rawKind, path string) error {
	kind, err := shared.ParseKind(rawKind)
	if err != nil {
		return err
	}
	if !kind.NeedsSpec() {
		return fmt.Errorf("%s analysis takes no specification file", kind)
	}
	return config.Set(cfg, fmt.Sprintf("specs.%s_path", kind), strings.TrimSpace(path))
}

// update applies mutate to a copy of cfg and persists it when it validates.
// An invalid result is neither saved nor applied.
func update(w io.Writer, cfg *config.Config, path string, mutate func(*config.Config) error) error {
	next := cfg.Snapshot()
	if err := mutate(&next); err != nil {
		return errors.NewCommandError(fmt.Errorf("settings not applied: %w", err), 1)
	}
	if err := config.ValidateConfig(&next); err != nil {
		return errors.NewCommandError(fmt.Errorf("configuration rejected: %w", err), 1)
	}
	if err := config.SaveConfig(path, &next); err != nil {
		return errors.NewCommandError(err, 2)
	}
	*cfg = next
	if logger != nil {
		logger.Debug("settings saved", "path", path)
	}
	fmt.Fprintf(w, "saved %s\n", path)
	printProblems(w, cfg)
	return nil
}
