package originserv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleResponseStreamsUntilFinished(t *testing.T) {
	p := NewSimpleResponse([]byte("hello"))
	assert.False(t, p.IsFinished())
	assert.Equal(t, "hello", string(p.Peek()))

	p.Advance(3)
	assert.Equal(t, "lo", string(p.Peek()))
	assert.False(t, p.IsFinished())

	p.Advance(2)
	assert.True(t, p.IsFinished())
	assert.Empty(t, p.Peek())
}

func TestFileResponseStreamsHeadersThenBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	p, err := NewFileResponse(path, 7, "text/plain", "")
	require.NoError(t, err)
	defer p.Close()

	head := p.Peek()
	assert.Contains(t, string(head), "Content-Length: 7")
	p.Advance(len(head))
	assert.True(t, p.headersSent)

	require.NoError(t, p.FillIfNeeded())
	assert.Equal(t, "payload", string(p.Peek()))
	p.Advance(len(p.Peek()))

	require.NoError(t, p.FillIfNeeded())
	assert.True(t, p.IsFinished())
}

func TestFileResponseMissingFileErrors(t *testing.T) {
	_, err := NewFileResponse("/nonexistent/path", 0, "text/plain", "")
	assert.Error(t, err)
}
