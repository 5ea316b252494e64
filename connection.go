/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/badu/originserv/hdr"
	"github.com/badu/originserv/internal/config"
	"github.com/badu/originserv/internal/session"
)

// Phase is a connection's position in the Read → Write → Finish state
// machine.
type Phase int

const (
	PhaseRead Phase = iota
	PhaseWrite
	PhaseFinish
)

// readBufSize is the stack buffer size each Read-phase iteration reads
// into, matching the Accumulator's incremental-append contract.
const readBufSize = 4096

// stepResult tells the event loop what to do after driving a connection
// once: keep polling the same connection immediately (state changed and
// more progress is possible without a new readiness event), stop until the
// next readiness event (WouldBlock), or close the connection.
type stepResult int

const (
	stepContinue stepResult = iota
	stepBlocked
	stepClose
)

// Connection is one accepted socket's full per-connection state, owned
// exclusively by the single event-loop thread.
type Connection struct {
	fd       int
	listener *Listener

	phase Phase
	ttl   time.Time

	acc           *Accumulator
	producer      Producer
	serverSelected bool
	server        *config.Server
	maxBodySize   int64
	bodyTooLarge  bool

	sessions *session.Store
}

// NewConnection wraps an accepted, non-blocking client fd.
func NewConnection(fd int, l *Listener, sessions *session.Store) *Connection {
	return &Connection{
		fd:       fd,
		listener: l,
		phase:    PhaseRead,
		ttl:      time.Now(),
		acc:      NewAccumulator(),
		sessions: sessions,
	}
}

// Step drives the connection once according to its current phase.
func (c *Connection) Step() stepResult {
	switch c.phase {
	case PhaseRead:
		return c.stepRead()
	case PhaseWrite:
		return c.stepWrite()
	default:
		return stepClose
	}
}

func (c *Connection) stepRead() stepResult {
	var buf [readBufSize]byte
	for {
		n, err := unix.Read(c.fd, buf[:])
		if err != nil {
			if wouldBlock(err) {
				return stepBlocked
			}
			return stepClose
		}
		if n == 0 {
			return stepClose
		}
		c.ttl = time.Now()

		if appendErr := c.acc.Append(buf[:n]); appendErr != nil {
			c.producer = simpleResponse(400, "text/plain", []byte(appendErr.Error()), "")
			c.phase = PhaseWrite
			return stepContinue
		}

		if c.acc.HeaderDone() && !c.serverSelected {
			head, _ := c.acc.GetBeforeDone()
			hostname := ExtractHostname(head.Header)
			srv := SelectServer(c.listener, hostname)
			c.server = srv
			c.maxBodySize = srv.ClientMaxBodySize
			c.serverSelected = true
		}

		if c.serverSelected && c.acc.BodyBytesSoFar() > c.maxBodySize {
			c.bodyTooLarge = true
			c.acc.Abort()
			c.producer = simpleResponse(413, "text/plain", []byte("Request body too large"), "")
			c.phase = PhaseWrite
			return stepContinue
		}

		if c.acc.Done() {
			return c.finishRead()
		}
	}
}

func (c *Connection) finishRead() stepResult {
	if c.bodyTooLarge {
		c.phase = PhaseWrite
		return stepContinue
	}

	req, ok := c.acc.Get()
	if !ok {
		c.producer = simpleResponse(400, "text/plain", []byte("Bad Request"), "")
		c.phase = PhaseWrite
		return stepContinue
	}

	extraHeader := ""
	if c.sessions != nil {
		_, setCookie := c.sessions.Resolve(req.Header, time.Now())
		if setCookie != nil {
			extraHeader = "Set-Cookie: " + setCookie.String() + "\r\n"
		}
	}

	route := FindMatchingRoute(c.server, req.Path)
	if route != nil && route.CgiExt != "" && strings.HasSuffix(req.Path, route.CgiExt) &&
		route.Redirect == "" && route.AllowsMethod(req.Method) {
		c.producer = c.dispatchCGI(route, req, extraHeader)
	} else {
		c.producer = Dispatch(c.server, req, extraHeader)
	}

	c.phase = PhaseWrite
	return stepContinue
}

func (c *Connection) stepWrite() stepResult {
	for {
		if c.producer == nil {
			return c.finishWrite(nil)
		}
		if err := c.producer.FillIfNeeded(); err != nil {
			if cgi, ok := c.producer.(*CGIResponse); ok && !cgi.HeadSent() {
				_ = cgi.Close()
				c.producer = cgiErrorResponse(err)
				continue
			}
			return stepClose
		}

		data := c.producer.Peek()
		if len(data) == 0 {
			if c.producer.IsFinished() {
				req, _ := c.acc.Get()
				return c.finishWrite(req)
			}
			return stepBlocked
		}

		n, err := unix.Write(c.fd, data)
		if err != nil {
			if wouldBlock(err) {
				return stepBlocked
			}
			return stepClose
		}
		if n > 0 {
			c.ttl = time.Now()
		}
		c.producer.Advance(n)

		if c.producer.IsFinished() {
			req, _ := c.acc.Get()
			return c.finishWrite(req)
		}
	}
}

func (c *Connection) finishWrite(req *Request) stepResult {
	if c.producer != nil {
		_ = c.producer.Close()
	}

	if req != nil && shouldKeepAlive(req.Header) {
		c.acc = NewAccumulator()
		c.producer = nil
		c.serverSelected = false
		c.bodyTooLarge = false
		c.phase = PhaseRead
		return stepContinue
	}

	c.phase = PhaseFinish
	return stepClose
}

func shouldKeepAlive(h hdr.Header) bool {
	return strings.EqualFold(h.Get(hdr.Connection), "keep-alive")
}

// Close shuts down and releases the connection's socket.
func (c *Connection) Close() {
	if c.producer != nil {
		_ = c.producer.Close()
	}
	unix.Shutdown(c.fd, unix.SHUT_RDWR)
	unix.Close(c.fd)
}
