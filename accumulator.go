/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/badu/originserv/hdr"
)

// ErrChunkedUnsupported is returned by Accumulator.Append when a request
// declares Transfer-Encoding: chunked. Chunked request bodies are a
// Non-goal; the connection is closed with a 400 response.
var ErrChunkedUnsupported = errors.New("originserv: chunked request bodies are not supported")

// ErrMalformedRequestLine is returned when the request line does not have
// exactly three space-separated tokens (method, target, version).
var ErrMalformedRequestLine = errors.New("originserv: malformed request line")

const headMaxBytes = 16 * 1024

// ErrHeadTooLarge is returned when the request head exceeds headMaxBytes
// without terminating, preventing an unbounded buffer from an adversarial
// or confused client.
var ErrHeadTooLarge = errors.New("originserv: request head too large")

// Accumulator incrementally assembles one HTTP/1.1 request out of the raw
// bytes handed to it across however many Read-ready events the poller
// delivers, per the Request Accumulator component. It exposes the
// append/done/get/header_done/get_before_done contract: Append feeds bytes
// in, HeaderDone reports once the head has been parsed, Done reports once
// the full body has arrived, GetBeforeDone exposes the head alone (for host
// resolution before the body is fully buffered) and Get returns the
// complete Request.
type Accumulator struct {
	buf []byte

	headEnd       int // offset of the first body byte, -1 until the head is parsed
	head          *Request
	contentLength int64
	parseErr      error
	forcedDone    bool
}

// NewAccumulator returns an empty Accumulator ready to receive bytes.
func NewAccumulator() *Accumulator {
	return &Accumulator{headEnd: -1}
}

// Append feeds newly read bytes into the accumulator, parsing the request
// head the first time a blank line terminates it. It returns a non-nil
// error once parsing has irrecoverably failed (malformed request line or
// chunked body); the caller should respond accordingly and close the
// connection.
func (a *Accumulator) Append(data []byte) error {
	if a.parseErr != nil {
		return a.parseErr
	}
	a.buf = append(a.buf, data...)

	if a.headEnd < 0 {
		if len(a.buf) > headMaxBytes {
			a.parseErr = ErrHeadTooLarge
			return a.parseErr
		}
		idx := bytes.Index(a.buf, []byte("\r\n\r\n"))
		if idx < 0 {
			return nil
		}
		if err := a.parseHead(idx); err != nil {
			a.parseErr = err
			return err
		}
	}
	return nil
}

func (a *Accumulator) parseHead(blankLineAt int) error {
	a.headEnd = blankLineAt + 4
	head := a.buf[:a.headEnd]

	lineEnd := bytes.IndexByte(head, '\n')
	if lineEnd < 0 {
		return ErrMalformedRequestLine
	}
	requestLine := strings.TrimRight(string(head[:lineEnd]), "\r\n")
	fields := strings.Fields(requestLine)
	if len(fields) != 3 {
		return ErrMalformedRequestLine
	}

	target := fields[1]
	path, query, _ := strings.Cut(target, "?")

	r := bufio.NewReader(bytes.NewReader(head[lineEnd+1:]))
	header, err := hdr.NewHeaderReader(r).ReadHeader()
	if err != nil {
		return err
	}
	for key, values := range header {
		if len(values) > 1 {
			header[key] = values[len(values)-1:]
		}
	}

	if te := header.Get(hdr.TransferEncoding); strings.Contains(strings.ToLower(te), "chunked") {
		return ErrChunkedUnsupported
	}

	contentLength := int64(0)
	if cl := header.Get(hdr.ContentLength); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return errors.New("originserv: invalid Content-Length")
		}
		contentLength = n
	}

	a.contentLength = contentLength
	a.head = &Request{
		Method:  fields[0],
		Path:    path,
		Query:   query,
		Version: fields[2],
		Header:  header,
	}
	return nil
}

// HeaderDone reports whether the request head has been fully parsed.
func (a *Accumulator) HeaderDone() bool {
	return a.headEnd >= 0
}

// Done reports whether the complete request, head and body, has arrived.
func (a *Accumulator) Done() bool {
	if a.forcedDone {
		return true
	}
	if a.headEnd < 0 {
		return false
	}
	return int64(len(a.buf)-a.headEnd) >= a.contentLength
}

// BodyBytesSoFar reports how many body bytes have arrived so far. The
// connection state machine compares this (plus any future bytes) against
// the route's client_max_body_size during the Read phase, without waiting
// for the full body to arrive.
func (a *Accumulator) BodyBytesSoFar() int64 {
	if a.headEnd < 0 {
		return 0
	}
	return int64(len(a.buf) - a.headEnd)
}

// DeclaredContentLength returns the Content-Length the client announced,
// available as soon as HeaderDone is true.
func (a *Accumulator) DeclaredContentLength() int64 {
	return a.contentLength
}

// Abort marks the accumulator done without a complete body, used when the
// connection state machine decides to short-circuit with an error response
// (e.g. 413 Payload Too Large) instead of waiting for the rest of the body.
func (a *Accumulator) Abort() {
	a.forcedDone = true
}

// GetBeforeDone returns the parsed request head, with no Body set, as soon
// as HeaderDone is true. The Resolver uses this to pick a virtual host and
// route before the (possibly large) body has fully arrived.
func (a *Accumulator) GetBeforeDone() (*Request, bool) {
	if a.head == nil {
		return nil, false
	}
	return a.head, true
}

// Get returns the complete request, with Body populated, once Done.
func (a *Accumulator) Get() (*Request, bool) {
	if a.head == nil || !a.Done() || a.forcedDone {
		return nil, false
	}
	req := *a.head
	req.Body = a.buf[a.headEnd : a.headEnd+int(a.contentLength)]
	return &req, true
}

// Remainder returns any bytes already read past the end of this request,
// the start of a pipelined next request on the same connection. The
// connection state machine does not use it: a keep-alive reset starts a
// fresh, empty Accumulator, so bytes past the request are discarded.
func (a *Accumulator) Remainder() []byte {
	if a.headEnd < 0 {
		return nil
	}
	end := a.headEnd + int(a.contentLength)
	if end >= len(a.buf) {
		return nil
	}
	return a.buf[end:]
}
