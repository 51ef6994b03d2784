package shared

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// HasFlags reports whether any flag was set on the command line.
func HasFlags(flags *pflag.FlagSet) bool {
	changed := false
	flags.Visit(func(*pflag.Flag) {
		changed = true
	})
	return changed
}

// WriteJSON encodes data as indented JSON.
func WriteJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
