// Package fileutil provides file and path helpers for export sandboxes.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrExtensionEmpty         = errors.New("extension cannot be empty")
	ErrExtensionPathTraversal = errors.New("extension contains path separator or null byte")
	ErrNameEscapesDir         = errors.New("file name escapes directory")
)

// Sandbox files are private to the job.
const (
	FilePerm = 0o600
	DirPerm  = 0o700
)

// WriteFileIn writes content to name inside dir and returns the full path.
// The name must stay inside dir: separators and ".." are rejected.
func WriteFileIn(dir, name string, content []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrNameEscapesDir, name)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, FilePerm); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// ValidateExtension checks that the extension is safe for use in file names.
func ValidateExtension(extension string) error {
	if extension == "" {
		return ErrExtensionEmpty
	}
	if strings.ContainsAny(extension, "/\\\x00") {
		return ErrExtensionPathTraversal
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
//
// Examples:
//   - "production" -> false (config name)
//   - "./texport.yaml" -> true
//   - "/etc/texport/server.toml" -> true
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// IsURL returns true if the string is an absolute http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
