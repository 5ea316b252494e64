package originserv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/originserv/hdr"
	"github.com/badu/originserv/internal/config"
)

func TestDispatchServesStaticFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644))

	srv := &config.Server{
		Root: dir,
		Routes: []config.Route{
			{Path: "/", Root: ".", Methods: []string{MethodGet}},
		},
	}
	req := &Request{Method: MethodGet, Path: "/index.html", Header: hdr.Header{}}

	p := Dispatch(srv, req, "")
	defer p.Close()

	head := string(p.Peek())
	assert.Contains(t, head, "200 OK")
	p.Advance(len(head))

	require.NoError(t, p.FillIfNeeded())
	assert.Contains(t, string(p.Peek()), "<h1>hi</h1>")
}

func TestDispatch404ForMissingRoute(t *testing.T) {
	srv := &config.Server{Root: t.TempDir()}
	req := &Request{Method: MethodGet, Path: "/nope", Header: hdr.Header{}}

	p := Dispatch(srv, req, "")
	assert.Contains(t, string(p.Peek()), "404")
}

func TestDispatch405WhenMethodNotAllowed(t *testing.T) {
	srv := &config.Server{
		Root: t.TempDir(),
		Routes: []config.Route{
			{Path: "/", Methods: []string{MethodGet}},
		},
	}
	req := &Request{Method: MethodDelete, Path: "/x", Header: hdr.Header{}}

	p := Dispatch(srv, req, "")
	out := string(p.Peek())
	assert.Contains(t, out, "405")
	assert.Contains(t, out, "Allow: GET")
}

func TestDispatchRedirectCarriesExtraHeader(t *testing.T) {
	srv := &config.Server{
		Root: t.TempDir(),
		Routes: []config.Route{
			{Path: "/old", Redirect: "/new"},
		},
	}
	req := &Request{Method: MethodGet, Path: "/old", Header: hdr.Header{}}

	p := Dispatch(srv, req, "Set-Cookie: session_id=abc; Path=/; HttpOnly\r\n")
	out := string(p.Peek())
	assert.Contains(t, out, "301 Moved Permanently")
	assert.Contains(t, out, "Location: /new")
	assert.Contains(t, out, "Set-Cookie: session_id=abc; Path=/; HttpOnly")
}

func TestDispatchDeletesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(target, []byte("bye"), 0o644))

	srv := &config.Server{
		Root:   dir,
		Routes: []config.Route{{Path: "/", Root: ".", Methods: []string{MethodDelete}}},
	}
	req := &Request{Method: MethodDelete, Path: "/gone.txt", Header: hdr.Header{}}

	p := Dispatch(srv, req, "")
	assert.Contains(t, string(p.Peek()), "204")
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestDispatchDirectUpload(t *testing.T) {
	dir := t.TempDir()
	srv := &config.Server{
		Root:   dir,
		Routes: []config.Route{{Path: "/upload", Root: ".", Methods: []string{MethodPost}}},
	}
	h := hdr.Header{}
	h.Set(hdr.ContentType, "text/plain")
	req := &Request{Method: MethodPost, Path: "/upload/note.txt", Header: h, Body: []byte("hello")}

	p := Dispatch(srv, req, "")
	assert.Contains(t, string(p.Peek()), "201")

	content, err := os.ReadFile(filepath.Join(dir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestRenderDirectoryListingSortsEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	body, err := renderDirectoryListing(dir, "/static")
	require.NoError(t, err)
	out := string(body)
	assert.Less(t, indexOf(out, "a.txt"), indexOf(out, "b.txt"))
	assert.Contains(t, out, "sub/")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
