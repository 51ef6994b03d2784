package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateToolPath(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantValid  bool
		wantReason string
	}{
		{name: "empty", input: "", wantReason: "value is empty"},
		{name: "blank", input: "   ", wantReason: "value is empty"},
		{name: "bare name", input: "swan-swiftc", wantReason: "value contains no path separator"},
		{name: "absolute", input: "/opt/swan/lib/swan-swiftc", wantValid: true},
		{name: "relative", input: "./lib/driver.jar", wantValid: true},
		{name: "windows", input: `C:\swan\driver.jar`, wantValid: true},
		{name: "missing file is still valid", input: "/does/not/exist", wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateToolPath(tt.input)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}
