package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/swan-ide/swanctl/pkg/shared/files"
)

// Config is the persisted tool configuration of swanctl.
type Config struct {
	Logger         Logger       `yaml:"logger"`
	Tools          Tools        `yaml:"tools"`
	Specs          Specs        `yaml:"specs"`
	Flags          Flags        `yaml:"flags"`
	Orchestrator   Orchestrator `yaml:"orchestrator"`
	AutoRun        AutoRun      `yaml:"auto_run"`
	SourcePatterns []string     `yaml:"source_patterns"`
}

type Logger struct {
	Level string `yaml:"level"`
}

// Tools holds the paths of the external executables.
type Tools struct {
	CompilerPath           string `yaml:"compiler_path"`
	DriverPath             string `yaml:"driver_path"`
	BuildScriptPath        string `yaml:"build_script_path"`
	BuildScriptInterpreter string `yaml:"build_script_interpreter"`
	JavaPath               string `yaml:"java_path"`
}

// Specs holds the specification files passed to the driver.
type Specs struct {
	TaintPath     string `yaml:"taint_path"`
	TypestatePath string `yaml:"typestate_path"`
}

// Flags are boolean driver switches appended to every driver invocation.
type Flags struct {
	ForceCacheRead  bool `yaml:"force_cache_read"`
	Debug           bool `yaml:"debug"`
	CallGraph       bool `yaml:"call_graph"`
	InvalidateCache bool `yaml:"invalidate_cache"`
	Names           bool `yaml:"names"`
	Dot             bool `yaml:"dot"`
	Probe           bool `yaml:"probe"`
	SingleThreaded  bool `yaml:"single_threaded"`
}

type Orchestrator struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout"`
}

// AutoRun describes which analyses run in response to document events.
type AutoRun struct {
	Kinds           []string `yaml:"kinds"`
	OnOpen          bool     `yaml:"on_open"`
	OnSave          bool     `yaml:"on_save"`
	ChangeThreshold int      `yaml:"change_threshold"`
}

const (
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultSideEffectTimeout = 10 * time.Second
	DefaultChangeThreshold   = 40
)

// Default returns the configuration used on first start and after a reset.
// Tool and specification paths are intentionally empty until the user sets them.
func Default() *Config {
	return &Config{
		Logger: Logger{Level: "INFO"},
		Tools: Tools{
			BuildScriptInterpreter: "sh",
			JavaPath:               "java",
		},
		Orchestrator: Orchestrator{
			PollInterval:      DefaultPollInterval,
			SideEffectTimeout: DefaultSideEffectTimeout,
		},
		AutoRun: AutoRun{
			Kinds:           []string{"taint"},
			OnOpen:          true,
			OnSave:          true,
			ChangeThreshold: DefaultChangeThreshold,
		},
		SourcePatterns: []string{"**/*.swift"},
	}
}

// Snapshot returns a deep copy that is safe to read while the original is mutated.
func (c *Config) Snapshot() Config {
	snap := *c
	snap.AutoRun.Kinds = append([]string(nil), c.AutoRun.Kinds...)
	snap.SourcePatterns = append([]string(nil), c.SourcePatterns...)
	return snap
}

// DefaultConfigPath returns ~/.swan/config.yml, honoring SWAN_HOME.
func DefaultConfigPath() (string, error) {
	if home := os.Getenv("SWAN_HOME"); home != "" {
		expanded, err := files.ExpandPath(home)
		if err != nil {
			return "", err
		}
		return filepath.Join(expanded, "config.yml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to get user home folder: %w", err)
	}
	return filepath.Join(homeDir, ".swan", "config.yml"), nil
}

func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads the YAML file on top of the defaults. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		applyEnv(config)
		return config, nil
	}

	if err := LoadYAML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}

	applyEnv(config)
	return config, nil
}

// SaveConfig writes the configuration to configPath, creating parent folders.
func SaveConfig(configPath string, cfg *Config) error {
	if err := files.CreateFolderIfNotExists(filepath.Dir(configPath)); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %q: %w", configPath, err)
	}
	return nil
}

// applyEnv overrides tool paths from SWAN_* environment variables.
func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"SWAN_COMPILER_PATH":            &cfg.Tools.CompilerPath,
		"SWAN_DRIVER_PATH":              &cfg.Tools.DriverPath,
		"SWAN_BUILD_SCRIPT_PATH":        &cfg.Tools.BuildScriptPath,
		"SWAN_BUILD_SCRIPT_INTERPRETER": &cfg.Tools.BuildScriptInterpreter,
		"SWAN_JAVA_PATH":                &cfg.Tools.JavaPath,
		"SWAN_TAINT_SPEC":               &cfg.Specs.TaintPath,
		"SWAN_TYPESTATE_SPEC":           &cfg.Specs.TypestatePath,
	}
	for env, field := range overrides {
		if value := os.Getenv(env); value != "" {
			*field = value
		}
	}
}
