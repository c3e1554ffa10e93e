package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectScanner(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"b.yaml":             "module: b",
		"a.yml":              "module: a",
		"notes.txt":          "This is a text file",
		"subdir/c.yaml":      "module: c",
		".opsem-cache/x.yml": "module: x",
	}
	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}

	scanned, err := New(tempDir, ".yaml", ".yml").Scan()
	require.NoError(t, err)

	var paths []string
	for _, file := range scanned {
		paths = append(paths, file.Path)
		assert.Greater(t, file.Size, int64(0), "File size should be greater than 0")
	}
	assert.Equal(t, []string{
		filepath.Join(tempDir, "a.yml"),
		filepath.Join(tempDir, "b.yaml"),
		filepath.Join(tempDir, "subdir", "c.yaml"),
	}, paths)
}

func TestIsTarget(t *testing.T) {
	s := New(".", ".yaml")
	assert.True(t, s.IsTarget("prog.yaml"))
	assert.False(t, s.IsTarget("prog.yml"))
	assert.True(t, New(".").IsTarget("anything"))
}
