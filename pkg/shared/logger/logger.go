package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/swan-ide/swanctl/pkg/shared/config"
)

// NewLogger creates a named logger writing to stderr. Stdout is left to command output
// and to the stdio editor bridge.
func NewLogger(cfg *config.Config, name string) hclog.Logger {
	return NewLoggerWithOutput(cfg, name, os.Stderr)
}

// NewLoggerWithOutput is NewLogger with an explicit destination.
func NewLoggerWithOutput(cfg *config.Config, name string, output io.Writer) hclog.Logger {
	var logLevel hclog.Level

	if cfg != nil && cfg.Logger.Level != "" {
		logLevel = getLogLevel(strings.ToUpper(cfg.Logger.Level))
	} else {
		// env variables has the second priority
		logLevelEnv := os.Getenv("SWAN_LOG_LEVEL")
		logLevel = getLogLevel(strings.ToUpper(logLevelEnv))
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		DisableTime: true,
		Output:      output,
		Level:       logLevel,
	})
}

func getLogLevel(levelStr string) hclog.Level {
	switch levelStr {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
