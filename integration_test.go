package originserv

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/originserv/internal/config"
)

// startTestServer boots a real Server bound to 127.0.0.1:port and registers
// a test cleanup that shuts it down. It exercises the full event loop over real
// TCP sockets per the end-to-end scenarios, rather than mocking the
// connection state machine.
func startTestServer(t *testing.T, port uint16, cfg *config.Config) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)

	srv, err := New(cfg, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})

	waitForPort(t, port)
}

func waitForPort(t *testing.T, port uint16) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never started listening on port %d", port)
}

func oneServerConfig(t *testing.T, port uint16, routes []config.Route) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Servers: []config.Server{
			{
				ServerName:        "default",
				Host:              "127.0.0.1",
				Ports:             []uint16{port},
				DefaultServer:     true,
				ClientMaxBodySize: 1_000_000,
				Root:              dir,
				Routes:            routes,
			},
		},
	}
}

func TestS1GetStaticFile(t *testing.T) {
	const port = 18181
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello"), 0o644))

	cfg := oneServerConfig(t, port, []config.Route{{Path: "/", Root: ".", Methods: []string{MethodGet}}})
	cfg.Servers[0].Root = dir
	startTestServer(t, port, cfg)

	resp := doRequest(t, port, "GET /index.html HTTP/1.1\r\nHost: any\r\n\r\n")
	assert.Contains(t, resp, "HTTP/1.1 200 OK")
	assert.Contains(t, resp, "Content-Length: 5")
	assert.Contains(t, resp, "Content-Type: text/html")
	assert.Contains(t, resp, "hello")
}

func TestS3MethodNotAllowed(t *testing.T) {
	const port = 18182
	cfg := oneServerConfig(t, port, []config.Route{{Path: "/", Methods: []string{MethodGet}}})
	startTestServer(t, port, cfg)

	resp := doRequest(t, port, "POST / HTTP/1.1\r\nHost: any\r\nContent-Length: 0\r\n\r\n")
	assert.Contains(t, resp, "405")
	assert.Contains(t, resp, "Allow: GET")
}

func TestS4BodyTooLarge(t *testing.T) {
	const port = 18183
	cfg := oneServerConfig(t, port, []config.Route{{Path: "/", Methods: []string{MethodPost}}})
	cfg.Servers[0].ClientMaxBodySize = 10
	startTestServer(t, port, cfg)

	body := make([]byte, 1000)
	req := fmt.Sprintf("POST / HTTP/1.1\r\nHost: any\r\nContent-Length: %d\r\n\r\n%s", len(body), string(body))
	resp := doRequest(t, port, req)
	assert.Contains(t, resp, "413")
}

func TestS8KeepAlive(t *testing.T) {
	const port = 18184
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("B"), 0o644))

	cfg := oneServerConfig(t, port, []config.Route{{Path: "/", Root: ".", Methods: []string{MethodGet}}})
	cfg.Servers[0].Root = dir
	startTestServer(t, port, cfg)

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /a.txt HTTP/1.1\r\nHost: any\r\nConnection: keep-alive\r\n\r\n"))
	require.NoError(t, err)
	r := bufio.NewReader(conn)
	first := readOneResponse(t, r)
	assert.Contains(t, first, "A")

	_, err = conn.Write([]byte("GET /b.txt HTTP/1.1\r\nHost: any\r\nConnection: keep-alive\r\n\r\n"))
	require.NoError(t, err)
	second := readOneResponse(t, r)
	assert.Contains(t, second, "B")
}

func TestS2NotFoundServesConfiguredErrorPage(t *testing.T) {
	const port = 18185
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "404.html"), []byte("nope here"), 0o644))

	cfg := oneServerConfig(t, port, []config.Route{{Path: "/", Root: ".", Methods: []string{MethodGet}}})
	cfg.Servers[0].Root = dir
	cfg.Servers[0].ErrorPages = []config.ErrorPage{{Code: 404, Path: filepath.Join(dir, "404.html")}}
	startTestServer(t, port, cfg)

	resp := doRequest(t, port, "GET /missing HTTP/1.1\r\nHost: any\r\n\r\n")
	assert.Contains(t, resp, "404 Not Found")
	assert.Contains(t, resp, "nope here")
}

func TestS5RedirectMovedPermanently(t *testing.T) {
	const port = 18186
	cfg := oneServerConfig(t, port, []config.Route{{Path: "/old", Redirect: "/new"}})
	startTestServer(t, port, cfg)

	resp := doRequest(t, port, "GET /old HTTP/1.1\r\nHost: any\r\n\r\n")
	assert.Contains(t, resp, "301 Moved Permanently")
	assert.Contains(t, resp, "Location: /new")
}

func TestS6VirtualHostSelectsByHostHeader(t *testing.T) {
	const port = 18187
	rootA := t.TempDir()
	rootB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "index.html"), []byte("from-a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "index.html"), []byte("from-b"), 0o644))

	cfg := &config.Config{
		Servers: []config.Server{
			{
				ServerName:        "a",
				Host:              "127.0.0.1",
				Ports:             []uint16{port},
				DefaultServer:     true,
				ClientMaxBodySize: 1_000_000,
				Root:              rootA,
				Routes:            []config.Route{{Path: "/", Root: ".", Methods: []string{MethodGet}}},
			},
			{
				ServerName:        "b",
				Host:              "127.0.0.1",
				Ports:             []uint16{port},
				ClientMaxBodySize: 1_000_000,
				Root:              rootB,
				Routes:            []config.Route{{Path: "/", Root: ".", Methods: []string{MethodGet}}},
			},
		},
	}
	startTestServer(t, port, cfg)

	respB := doRequest(t, port, "GET /index.html HTTP/1.1\r\nHost: b\r\n\r\n")
	assert.Contains(t, respB, "from-b")

	respC := doRequest(t, port, "GET /index.html HTTP/1.1\r\nHost: c\r\n\r\n")
	assert.Contains(t, respC, "from-a")
}

func TestS7DirectoryTraversalRejected(t *testing.T) {
	const port = 18188
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644))

	cfg := oneServerConfig(t, port, []config.Route{{Path: "/", Root: ".", Methods: []string{MethodGet}}})
	cfg.Servers[0].Root = dir
	startTestServer(t, port, cfg)

	resp := doRequest(t, port, "GET /../etc/passwd HTTP/1.1\r\nHost: any\r\n\r\n")
	assert.Contains(t, resp, "404")
}

func doRequest(t *testing.T, port uint16, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	return readOneResponse(t, bufio.NewReader(conn))
}

// readOneResponse reads a status line, headers and a Content-Length-sized
// body off r, enough to assert on for these tests.
func readOneResponse(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var out []byte
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		out = append(out, line...)
		if line == "\r\n" {
			break
		}
		fmt.Sscanf(line, "Content-Length: %d", &contentLength)
	}
	if contentLength > 0 {
		body := make([]byte, contentLength)
		_, err := readFull(r, body)
		require.NoError(t, err)
		out = append(out, body...)
	}
	return string(out)
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
