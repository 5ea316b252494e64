package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
servers:
  - host: 127.0.0.1
    routes:
      - path: "/"
        methods: [GET]
        root: ""
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)

	srv := cfg.Servers[0]
	assert.Equal(t, []uint16{80}, srv.Ports)
	assert.Equal(t, int64(defaultClientMaxBodySize), srv.ClientMaxBodySize)
	assert.Equal(t, "127.0.0.1", srv.ServerName)
	assert.False(t, srv.DefaultServer)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
servers:
  - host: 127.0.0.1
    bogus_field: true
    routes:
      - path: "/"
        methods: [GET]
        root: ""
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresAtLeastOneServer(t *testing.T) {
	path := writeConfig(t, "servers: []\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoServers)
}

func TestLoadRequiresRoutePathAndMethods(t *testing.T) {
	path := writeConfig(t, `
servers:
  - host: 127.0.0.1
    routes:
      - root: ""
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestErrorPagePath(t *testing.T) {
	srv := Server{ErrorPages: []ErrorPage{{Code: 404, Path: "./errors/404.html"}}}
	assert.Equal(t, "./errors/404.html", srv.ErrorPagePath(404))
	assert.Equal(t, "", srv.ErrorPagePath(500))
}

func TestRouteAllowsMethod(t *testing.T) {
	r := Route{Methods: []string{"GET", "POST"}}
	assert.True(t, r.AllowsMethod("GET"))
	assert.False(t, r.AllowsMethod("DELETE"))
}
