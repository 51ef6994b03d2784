package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// FlagSpec maps a boolean setting to its driver switch.
type FlagSpec struct {
	Key    string // YAML key under "flags"
	Field  string // Go field name in Flags
	Switch string // driver command-line switch
	Label  string // human label
}

// FlagSpecs lists the boolean driver switches in the order they are emitted.
var FlagSpecs = []FlagSpec{
	{Key: "force_cache_read", Field: "ForceCacheRead", Switch: "-f", Label: "Force cache read"},
	{Key: "debug", Field: "Debug", Switch: "-d", Label: "Debug"},
	{Key: "call_graph", Field: "CallGraph", Switch: "-g", Label: "Call graph"},
	{Key: "invalidate_cache", Field: "InvalidateCache", Switch: "-i", Label: "Invalidate cache"},
	{Key: "names", Field: "Names", Switch: "-n", Label: "Names"},
	{Key: "dot", Field: "Dot", Switch: "-o", Label: "Dot"},
	{Key: "probe", Field: "Probe", Switch: "-r", Label: "Probe"},
	{Key: "single_threaded", Field: "SingleThreaded", Switch: "-s", Label: "Single threaded"},
}

// LookupFlag finds a flag by its YAML key.
func LookupFlag(key string) (FlagSpec, bool) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "flags.")
	for _, spec := range FlagSpecs {
		if spec.Key == key {
			return spec, true
		}
	}
	return FlagSpec{}, false
}

// FlagValue returns the current value of a boolean flag.
func FlagValue(cfg *Config, spec FlagSpec) bool {
	return GetBoolValue(cfg, "Flags."+spec.Field, false)
}

// ApplySettings merges a settings-change notification into cfg. The map mirrors the YAML layout,
// e.g. {"tools": {"driver_path": "/opt/driver.jar"}, "flags": {"debug": true}}.
// Keys absent from the map keep their current values.
func ApplySettings(cfg *Config, settings map[string]interface{}) error {
	if cfg == nil {
		return fmt.Errorf("configuration object is nil")
	}
	resetListsPresentIn(cfg, settings)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           cfg,
	})
	if err != nil {
		return fmt.Errorf("failed to build settings decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("failed to apply settings: %w", err)
	}
	return nil
}

// Set assigns a single dotted key such as "tools.driver_path" or "flags.debug".
func Set(cfg *Config, key, value string) error {
	parts := strings.Split(strings.TrimSpace(key), ".")
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid settings key %q", key)
		}
	}

	var leaf interface{} = value
	if parts[len(parts)-1] == "kinds" || parts[len(parts)-1] == "source_patterns" {
		leaf = splitList(value)
	}

	settings := map[string]interface{}{parts[len(parts)-1]: leaf}
	for i := len(parts) - 2; i >= 0; i-- {
		settings = map[string]interface{}{parts[i]: settings}
	}
	return ApplySettings(cfg, settings)
}

// ToggleFlag flips a boolean flag and returns its new value.
func ToggleFlag(cfg *Config, key string) (bool, error) {
	spec, ok := LookupFlag(key)
	if !ok {
		return false, fmt.Errorf("unknown flag %q", key)
	}
	next := !FlagValue(cfg, spec)
	if err := Set(cfg, "flags."+spec.Key, strconv.FormatBool(next)); err != nil {
		return false, err
	}
	return next, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// resetListsPresentIn clears slices that the settings map replaces, since the decoder
// otherwise reuses the existing backing slice and keeps trailing elements.
func resetListsPresentIn(cfg *Config, settings map[string]interface{}) {
	if _, ok := settings["source_patterns"]; ok {
		cfg.SourcePatterns = nil
	}
	if autoRun, ok := settings["auto_run"].(map[string]interface{}); ok {
		if _, ok := autoRun["kinds"]; ok {
			cfg.AutoRun.Kinds = nil
		}
	}
}
