/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAddGetSetDel(t *testing.T) {
	h := Header{}
	h.Add("x-custom", "one")
	h.Add("X-Custom", "two")
	assert.Equal(t, "one", h.Get("X-Custom"))
	assert.Equal(t, []string{"one", "two"}, h["X-Custom"])

	h.Set("X-Custom", "three")
	assert.Equal(t, []string{"three"}, h["X-Custom"])

	h.Del("x-custom")
	assert.Equal(t, "", h.Get("X-Custom"))
}

func TestHeaderWriteSortsKeysAndFlattensNewlines(t *testing.T) {
	h := Header{
		ContentType:   {"text/html"},
		ContentLength: {"5"},
	}
	h.Set("X-Injected", "a\r\nSet-Cookie: evil=1")

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	out := buf.String()
	assert.True(t, strings.Index(out, "Content-Length") < strings.Index(out, "Content-Type"))
	assert.NotContains(t, out, "\r\nSet-Cookie: evil=1")
	assert.Contains(t, out, "X-Injected: a  Set-Cookie: evil=1\r\n")
}

func TestWriteStatusLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatusLine(&buf, 404, "Not Found"))
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\n", buf.String())
}

func TestHeaderReaderParsesFoldedContinuationLines(t *testing.T) {
	raw := "Host: example.com\r\nX-Long: first\r\n second\r\n\r\n"
	r := NewHeaderReader(bufio.NewReader(strings.NewReader(raw)))

	h, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, "example.com", h.Get("Host"))
	assert.Equal(t, "first second", h.Get("X-Long"))
}

func TestCanonicalHeaderKey(t *testing.T) {
	assert.Equal(t, "Content-Type", CanonicalHeaderKey("content-type"))
	assert.Equal(t, "Content-Type", CanonicalHeaderKey("CONTENT-TYPE"))
}
