package originserv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/originserv/internal/config"
)

func TestResolveFilePathServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	srv := &config.Server{Root: dir}
	route := &config.Route{Path: "/static", Root: "."}

	path, ok := ResolveFilePath(srv, route, "/static/a.txt")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "a.txt"), path)
}

func TestResolveFilePathRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "www"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("s"), 0o644))

	srv := &config.Server{Root: filepath.Join(dir, "www")}
	route := &config.Route{Path: "/", Root: "."}

	_, ok := ResolveFilePath(srv, route, "/../secret.txt")
	assert.False(t, ok)
}

func TestResolveFilePathAllowsNewFileUnderExistingParent(t *testing.T) {
	dir := t.TempDir()
	srv := &config.Server{Root: dir}
	route := &config.Route{Path: "/", Root: "."}

	path, ok := ResolveFilePath(srv, route, "/new-upload.txt")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "new-upload.txt"), path)
}
