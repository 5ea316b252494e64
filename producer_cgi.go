/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/badu/originserv/hdr"
)

// ErrCGITimeout is returned once a CGI child has run past its deadline
// without producing a complete response head. The Dispatcher maps this to
// a 504 Gateway Timeout.
var ErrCGITimeout = errors.New("originserv: cgi process timed out")

// ErrCGINoHeaders is returned when a CGI child exits before writing a
// complete header block. The Dispatcher maps this to a 502 Bad Gateway.
var ErrCGINoHeaders = errors.New("originserv: cgi process exited before sending headers")

const cgiReadChunk = 4096

// CGIResponse is a Producer that drives a spawned CGI child process: it
// reads the child's stdout, splits a CGI header block (an optional
// "Status:" line plus ordinary headers, terminated by a blank line) from
// the body that follows, rewrites that block into a proper HTTP/1.1
// response head, and then streams the remaining body bytes unmodified.
//
// The stdout pipe is put in non-blocking mode and read via raw fd
// syscalls rather than os.File.Read, matching the connection socket
// discipline in connection.go: a single read attempt per FillIfNeeded
// call, never parking the event-loop goroutine waiting for the child.
// Fd exposes the raw descriptor so the caller can register it with the
// same Poller that drives connection sockets.
type CGIResponse struct {
	cmd *exec.Cmd
	fd  int

	raw        []byte // bytes read from stdout not yet classified as head/body
	head       []byte // the rewritten HTTP response head, once parsed
	headIndex  int
	headParsed bool
	bodyStart  int // offset in raw where the body begins, once headParsed

	processDone bool
	procErr     error
	deadline    time.Time
}

// NewCGIResponse starts cmd (which must already have Stdout wired to a
// pipe obtained from cmd.StdoutPipe(), and Stdin/env/Dir set by the
// caller) and returns a Producer over its output, failing the request
// with 504 if no response head has arrived by deadline.
func NewCGIResponse(cmd *exec.Cmd, stdout *os.File, deadline time.Time) (*CGIResponse, error) {
	fd := int(stdout.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &CGIResponse{
		cmd:      cmd,
		fd:       fd,
		deadline: deadline,
	}, nil
}

// Fd returns the CGI child's stdout descriptor, for Poller registration.
func (c *CGIResponse) Fd() int {
	return c.fd
}

func (c *CGIResponse) Peek() []byte {
	if !c.headParsed {
		return nil
	}
	if c.headIndex < len(c.head) {
		return c.head[c.headIndex:]
	}
	return c.raw[c.bodyStart:]
}

func (c *CGIResponse) Advance(n int) {
	if !c.headParsed {
		return
	}
	if c.headIndex < len(c.head) {
		c.headIndex += n
		return
	}
	c.bodyStart += n
}

// HeadSent reports whether any bytes of the response head have already
// been handed to the socket, the point past which the connection can no
// longer swap this producer for an error page.
func (c *CGIResponse) HeadSent() bool {
	return c.headIndex > 0
}

func (c *CGIResponse) IsFinished() bool {
	return c.headParsed && c.headIndex >= len(c.head) && c.processDone && c.bodyStart >= len(c.raw)
}

// FillIfNeeded performs at most one non-blocking read from the child's
// stdout fd, parsing the CGI header block out of it the first time a
// blank line appears. The fd is registered with the same Poller that
// drives connection sockets (see Server.syncCGIRegistration), so this is
// only called once the fd has been readiness-signaled — but the read
// itself is still issued against a non-blocking fd and treats
// EAGAIN/EWOULDBLOCK as "nothing to do yet" rather than an error, exactly
// like stepRead in connection.go.
func (c *CGIResponse) FillIfNeeded() error {
	if c.procErr != nil {
		return c.procErr
	}
	if !time.Now().Before(c.deadline) && !c.headParsed {
		c.procErr = ErrCGITimeout
		c.killAndReap()
		return c.procErr
	}
	if c.headParsed && (c.bodyStart < len(c.raw) || c.processDone) {
		return nil
	}

	buf := make([]byte, cgiReadChunk)
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if wouldBlock(err) {
			return nil
		}
		c.processDone = true
		_ = c.cmd.Wait()
		c.procErr = err
		return err
	}
	if n == 0 {
		c.processDone = true
		_ = c.cmd.Wait()
		if !c.headParsed {
			if parseErr := c.tryParseHead(); parseErr != nil {
				c.procErr = ErrCGINoHeaders
				return c.procErr
			}
		}
		return nil
	}

	c.raw = append(c.raw, buf[:n]...)
	if !c.headParsed {
		_ = c.tryParseHead()
	}
	return nil
}

// killAndReap terminates a CGI child that has run past its deadline and
// reaps it so it doesn't linger as a zombie. cmd.Wait, not Process.Wait,
// is used so the stdlib also closes the stdout pipe fd it owns.
func (c *CGIResponse) killAndReap() {
	if c.processDone {
		return
	}
	c.processDone = true
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
}

func (c *CGIResponse) tryParseHead() error {
	sep := bytes.Index(c.raw, []byte("\r\n\r\n"))
	sepLen := 4
	if sep < 0 {
		sep = bytes.Index(c.raw, []byte("\n\n"))
		sepLen = 2
	}
	if sep < 0 {
		return errors.New("originserv: cgi header block incomplete")
	}

	r := bufio.NewReader(bytes.NewReader(c.raw[:sep+sepLen]))
	header, err := hdr.NewHeaderReader(r).ReadHeader()
	if err != nil {
		return err
	}

	const cgiStatusHeader = "Status"
	status := 200
	if s := header.Get(cgiStatusHeader); s != "" {
		code, _, _ := strings.Cut(strings.TrimSpace(s), " ")
		if parsed, convErr := strconv.Atoi(code); convErr == nil {
			status = parsed
		}
		header.Del(cgiStatusHeader)
	}

	var out bytes.Buffer
	_ = hdr.WriteStatusLine(&out, status, statusTextFor(status))
	_ = header.Write(&out)
	out.WriteString("\r\n")

	c.head = out.Bytes()
	c.bodyStart = sep + sepLen
	c.headParsed = true
	return nil
}

// Close tears down the CGI child if it is still running. Once
// processDone is set, cmd.Wait has already run and closed the stdout
// pipe fd, so there is nothing left to release.
func (c *CGIResponse) Close() error {
	if c.processDone {
		return nil
	}
	c.processDone = true
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
	return nil
}
