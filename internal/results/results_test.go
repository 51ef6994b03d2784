package results

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "/f.swift:3:5", want: Location{Raw: "/f.swift:3:5", Path: "/f.swift", Line: 2, Column: 4}},
		{raw: "Sources/App/main.swift:1:1", want: Location{Raw: "Sources/App/main.swift:1:1", Path: "Sources/App/main.swift"}},
		{raw: "C:\\work\\a.swift:10:2", want: Location{Raw: "C:\\work\\a.swift:10:2", Path: "C:\\work\\a.swift", Line: 9, Column: 1}},
		{raw: "/f.swift:0:5", wantErr: true},
		{raw: "/f.swift:3:0", wantErr: true},
		{raw: "/f.swift:-3:5", wantErr: true},
		{raw: "/f.swift:3", wantErr: true},
		{raw: ":3:5", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "no location here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocationRange(t *testing.T) {
	for line := 1; line <= 40; line += 13 {
		for col := 1; col <= 40; col += 7 {
			loc, err := ParseLocation(fmt.Sprintf("a/b.swift:%d:%d", line, col))
			require.NoError(t, err)
			assert.Equal(t, line-1, loc.Line)
			assert.Equal(t, col-1, loc.Column)
			assert.Equal(t, fmt.Sprintf("a/b.swift:%d:%d", line, col), loc.String())
		}
	}
}

func TestParseLeak(t *testing.T) {
	data := `[{"name":"Leak","description":"d","advice":"a","paths":[{"source":{"name":"S"},"sink":{"name":"T"},"path":["/f.swift:3:5"]}]}]`

	report, err := Parse([]byte(data), shared.KindTaint, "/")
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	require.Len(t, report.Findings, 1)

	finding := report.Findings[0]
	assert.Equal(t, shared.KindTaint, finding.Kind)
	assert.Equal(t, "Leak", finding.Name)
	assert.Equal(t, "d", finding.Description)
	assert.Equal(t, "a", finding.Advice)
	require.Len(t, finding.Groups, 1)
	assert.Equal(t, []string{"S", "T"}, finding.Groups[0].Titles)
	require.Len(t, finding.Groups[0].Locations, 1)
	assert.Equal(t, Location{Raw: "/f.swift:3:5", Path: "/f.swift", Line: 2, Column: 4}, finding.Groups[0].Locations[0])
}

func TestParseTaintPathOrder(t *testing.T) {
	const n = 5
	var entries []string
	for i := 0; i < n; i++ {
		var path []string
		for j := 0; j <= i; j++ {
			path = append(path, fmt.Sprintf("%q", fmt.Sprintf("/src/f%d.swift:%d:%d", i, j+1, j+2)))
		}
		entries = append(entries, fmt.Sprintf(`{"source":{"name":"src%d"},"sink":{"name":"sink%d"},"path":[%s]}`,
			i, i, strings.Join(path, ",")))
	}
	data := fmt.Sprintf(`[{"name":"Flow","description":"d","advice":"a","paths":[%s]}]`, strings.Join(entries, ","))

	report, err := Parse([]byte(data), shared.KindTaint, "")
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)

	groups := report.Findings[0].Groups
	require.Len(t, groups, n)
	for i, group := range groups {
		assert.Equal(t, []string{fmt.Sprintf("src%d", i), fmt.Sprintf("sink%d", i)}, group.Titles)
		require.Len(t, group.Locations, i+1)
		for j, loc := range group.Locations {
			assert.Equal(t, fmt.Sprintf("/src/f%d.swift", i), loc.Path)
			assert.Equal(t, j, loc.Line)
			assert.Equal(t, j+1, loc.Column)
		}
	}
	assert.Equal(t, 15, report.Findings[0].LocationCount())
}

func TestParseTypestateJoinsOrigin(t *testing.T) {
	origin := filepath.Join("work", "app")
	absolute := filepath.Join(string(filepath.Separator), "abs", "file.swift")
	data := fmt.Sprintf(`[{"name":"FileOpenClose","description":"d","advice":"close it","errors":[
		{"message":"file not closed","pos":"main.swift:12:3"},
		{"message":"double close","pos":%q}
	]}]`, absolute+":1:1")

	report, err := Parse([]byte(data), shared.KindTypestate, origin)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)

	groups := report.Findings[0].Groups
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"file not closed"}, groups[0].Titles)
	assert.Equal(t, filepath.Join(origin, "main.swift"), groups[0].Locations[0].Path)
	assert.Equal(t, 11, groups[0].Locations[0].Line)
	assert.Equal(t, absolute, groups[1].Locations[0].Path)
}

func TestParseCryptoUsesErrorShape(t *testing.T) {
	data := `[{"name":"WeakCipher","description":"d","advice":"use AES-GCM","errors":[{"message":"ECB mode","pos":"crypto.swift:4:9"}]}]`

	report, err := Parse([]byte(data), shared.KindCrypto, "/proj")
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, shared.KindCrypto, report.Findings[0].Kind)
	assert.Equal(t, filepath.Join("/proj", "crypto.swift"), report.Findings[0].Groups[0].Locations[0].Path)
}

func TestParsePartialTolerance(t *testing.T) {
	data := `[
		{"name":"Broken","description":"d"},
		{"name":"Good","description":"d","advice":"a","paths":[
			{"source":{"name":"S"},"sink":{"name":"T"},"path":["bad location","/f.swift:1:2"]},
			{"source":{"name":"S"},"sink":{"name":"T"},"path":["still bad"]},
			{"sink":{"name":"T"},"path":["/f.swift:1:2"]}
		]}
	]`

	report, err := Parse([]byte(data), shared.KindTaint, "")
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "Good", report.Findings[0].Name)
	require.Len(t, report.Findings[0].Groups, 1)
	assert.Len(t, report.Findings[0].Groups[0].Locations, 1)

	require.Len(t, report.Warnings, 5)
	var parseErr *errors.ParseError
	require.True(t, stderrors.As(report.Warnings[0], &parseErr))
	assert.Equal(t, errors.UnexpectedShape, parseErr.Kind)
	assert.Equal(t, "[0]", parseErr.Item)
	require.True(t, stderrors.As(report.Warnings[1], &parseErr))
	assert.Equal(t, errors.BadLocation, parseErr.Kind)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		data string
		want errors.ParseErrorKind
	}{
		{name: "invalid json", data: `[{"name":`, want: errors.MalformedJSON},
		{name: "object at top level", data: `{"name":"Leak"}`, want: errors.MalformedJSON},
		{name: "null at top level", data: ` null `, want: errors.MalformedJSON},
		{name: "every item unusable", data: `[{"name":"x"},42]`, want: errors.UnexpectedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), shared.KindTaint, "")
			require.Error(t, err)
			var parseErr *errors.ParseError
			require.True(t, stderrors.As(err, &parseErr))
			assert.Equal(t, tt.want, parseErr.Kind)
		})
	}
}

func TestParseEmptyArray(t *testing.T) {
	report, err := Parse([]byte(`[]`), shared.KindTypestate, "")
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
	assert.Empty(t, report.Warnings)
}

func TestParseRejectsKindWithoutFindings(t *testing.T) {
	_, err := Parse([]byte(`[]`), shared.KindCallGraph, "")
	assert.Error(t, err)
}

func TestReadResultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "taint-results.json"), []byte(`[]`), 0644))

	data, path, err := ReadResultFile(dir, shared.KindTaint)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, filepath.Join(dir, "taint-results.json"), path)

	_, _, err = ReadResultFile(dir, shared.KindTypestate)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(stderrors.Unwrap(err)))
}

func TestFormatDebugDump(t *testing.T) {
	out, err := FormatDebugDump([]byte(`{"functions":["main"]}`))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"functions\": [\n    \"main\"\n  ]\n}", out)

	_, err = FormatDebugDump([]byte(`{`))
	assert.Error(t, err)
}
