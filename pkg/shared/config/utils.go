package config

import (
	"reflect"
	"strings"
	"time"
)

// GetBoolValue reads a bool (or *bool) from a nested struct by a dot-separated field path,
// for example "Flags.Debug". It returns defaultValue when the path does not resolve.
func GetBoolValue(config interface{}, fieldPath string, defaultValue bool) bool {
	if config == nil {
		return defaultValue
	}

	val := reflect.ValueOf(config)
	for _, field := range strings.Split(fieldPath, ".") {
		if val.Kind() == reflect.Ptr {
			if val.IsNil() {
				return defaultValue
			}
			val = val.Elem()
		}
		if val.Kind() != reflect.Struct {
			return defaultValue
		}

		val = val.FieldByName(field)
		if !val.IsValid() {
			return defaultValue
		}
	}

	if val.Kind() == reflect.Ptr && !val.IsNil() {
		return val.Elem().Bool()
	} else if val.Kind() == reflect.Bool {
		return val.Bool()
	}

	return defaultValue
}

// SetThen returns value unless it is the zero value, in which case defaultValue is returned.
func SetThen[T any](value T, defaultValue T) T {
	if reflect.ValueOf(value).IsZero() {
		return defaultValue
	}
	return value
}

// PollSettings returns the orchestrator polling interval and timeout with defaults applied.
func PollSettings(cfg *Config) (time.Duration, time.Duration) {
	return SetThen(cfg.Orchestrator.PollInterval, DefaultPollInterval),
		SetThen(cfg.Orchestrator.SideEffectTimeout, DefaultSideEffectTimeout)
}
