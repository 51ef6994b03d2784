package version

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/validation"
)

var (
	AppConfig     *config.Config
	CoreVersion   = "unknown"
	GolangVersion = runtime.Version()
	BuildTime     = "unknown"
)

// Versions holds version information for swanctl and the tools it drives.
type Versions struct {
	Version       string     `json:"version"`
	GolangVersion string     `json:"golang_version"`
	BuildTime     string     `json:"build_time"`
	Tools         []ToolMeta `json:"tools"`
}

// ToolMeta describes one configured external tool.
type ToolMeta struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number of the application and the configured tools",
		Run: func(cmd *cobra.Command, args []string) {
			versions := Versions{
				Version:       CoreVersion,
				GolangVersion: GolangVersion,
				BuildTime:     BuildTime,
				Tools:         getToolsMeta(AppConfig),
			}
			printVersionInfo(cmd.OutOrStdout(), &versions)
		},
	}
}

// getToolsMeta lists the configured tool paths and whether they pass the syntactic check.
func getToolsMeta(cfg *config.Config) []ToolMeta {
	if cfg == nil {
		return nil
	}
	tools := []ToolMeta{
		{Name: "compiler", Path: cfg.Tools.CompilerPath},
		{Name: "driver", Path: cfg.Tools.DriverPath},
		{Name: "build script", Path: cfg.Tools.BuildScriptPath},
	}
	for i := range tools {
		if v := validation.ValidateToolPath(tools[i].Path); v.Valid {
			tools[i].Status = "ok"
		} else {
			tools[i].Status = v.Reason
		}
	}
	return tools
}

// printVersionInfo prints the version information for swanctl and its tools.
func printVersionInfo(w io.Writer, versions *Versions) {
	fmt.Fprintf(w, "Core Version: v%s\n", versions.Version)
	fmt.Fprintln(w, "Tools:")
	for _, tool := range versions.Tools {
		fmt.Fprintf(w, "  %s: %s (%s)\n", tool.Name, tool.Path, tool.Status)
	}
	fmt.Fprintf(w, "Go Version: %s\n", versions.GolangVersion)
	fmt.Fprintf(w, "Build Time: %s\n", versions.BuildTime)
}
