package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile writes content to path, creating parent directories.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	require.NoError(t, os.MkdirAll(dir, 0o755), "Failed to create directory %s for dummy file", dir)
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644), "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at path.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	require.NoError(t, os.MkdirAll(fullPath, 0o755), "Failed to create dummy directory %s", fullPath)
}

// ReadFile returns the contents of path as a string, failing the test when
// it cannot be read.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read %s", path)
	return string(b)
}
