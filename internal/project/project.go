package project

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ManifestFileName marks the root of a Swift package.
const ManifestFileName = "Package.swift"

// FindProjectRoot walks upward from startDir and returns the first directory that contains
// the manifest. The boolean is false when the filesystem root is reached without a match,
// which callers treat as single-file mode.
func FindProjectRoot(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		dir = filepath.Clean(startDir)
	}

	for {
		info, err := os.Stat(filepath.Join(dir, ManifestFileName))
		if err == nil && !info.IsDir() {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// IsSourceFile reports whether path matches any of the doublestar patterns.
// Patterns without a directory part are matched against the base name as well,
// so "*.swift" works for absolute paths.
func IsSourceFile(path string, patterns []string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
