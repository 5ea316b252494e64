package originserv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorParsesSimpleGet(t *testing.T) {
	a := NewAccumulator()
	err := a.Append([]byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	assert.True(t, a.HeaderDone())
	assert.True(t, a.Done())

	req, ok := a.Get()
	require.True(t, ok)
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "example.com", req.Header.Get("Host"))
	assert.Empty(t, req.Body)
}

func TestAccumulatorWaitsForBody(t *testing.T) {
	a := NewAccumulator()
	require.NoError(t, a.Append([]byte("POST /upload HTTP/1.1\r\nContent-Length: 5\r\n\r\n")))
	assert.True(t, a.HeaderDone())
	assert.False(t, a.Done())

	require.NoError(t, a.Append([]byte("hel")))
	assert.False(t, a.Done())

	require.NoError(t, a.Append([]byte("lo")))
	assert.True(t, a.Done())

	req, ok := a.Get()
	require.True(t, ok)
	assert.Equal(t, "hello", string(req.Body))
}

func TestAccumulatorFeedsAcrossMultipleAppends(t *testing.T) {
	a := NewAccumulator()
	require.NoError(t, a.Append([]byte("GET / HTT")))
	assert.False(t, a.HeaderDone())
	require.NoError(t, a.Append([]byte("P/1.1\r\n")))
	require.NoError(t, a.Append([]byte("Host: x\r\n")))
	require.NoError(t, a.Append([]byte("\r\n")))
	assert.True(t, a.Done())
}

func TestAccumulatorRejectsChunkedBody(t *testing.T) {
	a := NewAccumulator()
	err := a.Append([]byte("POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"))
	assert.ErrorIs(t, err, ErrChunkedUnsupported)
}

func TestAccumulatorRejectsMalformedRequestLine(t *testing.T) {
	a := NewAccumulator()
	err := a.Append([]byte("GET\r\nHost: x\r\n\r\n"))
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
}

func TestAccumulatorBodyBytesSoFarTracksPartialBody(t *testing.T) {
	a := NewAccumulator()
	require.NoError(t, a.Append([]byte("POST /x HTTP/1.1\r\nContent-Length: 1000\r\n\r\n")))
	require.NoError(t, a.Append(make([]byte, 50)))
	assert.Equal(t, int64(50), a.BodyBytesSoFar())
	assert.False(t, a.Done())
}

func TestAccumulatorAbortForcesDone(t *testing.T) {
	a := NewAccumulator()
	require.NoError(t, a.Append([]byte("POST /x HTTP/1.1\r\nContent-Length: 1000\r\n\r\n")))
	a.Abort()
	assert.True(t, a.Done())
	_, ok := a.Get()
	assert.False(t, ok)
}

func TestAccumulatorRemainderCapturesPipelinedBytes(t *testing.T) {
	a := NewAccumulator()
	require.NoError(t, a.Append([]byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")))
	assert.True(t, a.Done())
	assert.Equal(t, "GET /b HTTP/1.1\r\n\r\n", string(a.Remainder()))
}
