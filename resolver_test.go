package originserv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/badu/originserv/hdr"
	"github.com/badu/originserv/internal/config"
)

func TestExtractHostnameStripsPort(t *testing.T) {
	h := hdr.Header{hdr.Host: {"example.com:8080"}}
	assert.Equal(t, "example.com", ExtractHostname(h))
}

func TestExtractHostnameEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractHostname(hdr.Header{}))
}

func TestSelectServerFallsBackToDefault(t *testing.T) {
	l := &Listener{
		Servers: []*config.Server{
			{ServerName: "a.example.com"},
			{ServerName: "b.example.com"},
		},
		DefaultIndex: 1,
	}
	assert.Equal(t, "a.example.com", SelectServer(l, "a.example.com").ServerName)
	assert.Equal(t, "b.example.com", SelectServer(l, "unknown.example.com").ServerName)
}

func TestFindMatchingRouteLongestPrefix(t *testing.T) {
	srv := &config.Server{
		Routes: []config.Route{
			{Path: "/"},
			{Path: "/api"},
			{Path: "/api/v1"},
		},
	}
	assert.Equal(t, "/api/v1", FindMatchingRoute(srv, "/api/v1/users").Path)
	assert.Equal(t, "/api", FindMatchingRoute(srv, "/api/other").Path)
	assert.Equal(t, "/", FindMatchingRoute(srv, "/anything").Path)
}

func TestFindMatchingRouteRejectsPartialSegment(t *testing.T) {
	srv := &config.Server{
		Routes: []config.Route{
			{Path: "/"},
			{Path: "/a"},
		},
	}
	assert.Equal(t, "/", FindMatchingRoute(srv, "/ab").Path)
}

func TestErrorPagePathFallsBackToConvention(t *testing.T) {
	srv := &config.Server{}
	assert.Equal(t, "./error_pages/404.html", ErrorPagePath(srv, 404))
}

func TestErrorPagePathUsesOverride(t *testing.T) {
	srv := &config.Server{ErrorPages: []config.ErrorPage{{Code: 404, Path: "/custom/404.html"}}}
	assert.Equal(t, "/custom/404.html", ErrorPagePath(srv, 404))
}
