/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"bytes"
	"os"
	"os/exec"
	"time"

	"github.com/badu/originserv/internal/cgienv"
	"github.com/badu/originserv/internal/config"
)

// DefaultCGITimeout bounds how long a CGI child may run before producing a
// complete response head; exceeding it maps to 504 Gateway Timeout.
const DefaultCGITimeout = 5 * time.Second

// dispatchCGI runs the resolved script for req and wraps it in a
// CGIResponse Producer. The script itself is the executable; no
// interpreter is selected from the route, so the script must be runnable
// on its own (for example through a #! line). Spawn failures (executable
// not found, fork failure) map to 500 immediately, since no child is
// running to report a more specific failure.
func (c *Connection) dispatchCGI(route *config.Route, req *Request, extraHeader string) Producer {
	scriptPath, ok := ResolveFilePath(c.server, route, req.Path)
	if !ok {
		return errorResponse(c.server, 404)
	}

	cmd := exec.Command(scriptPath)
	cmd.Env = cgienv.Build(os.Environ(), cgienv.Request{
		Method:        req.Method,
		Path:          req.Path,
		Query:         req.Query,
		Version:       req.Version,
		Headers:       req.Header,
		ContentLength: req.ContentLength(),
	}, scriptPath)

	if len(req.Body) > 0 {
		cmd.Stdin = bytes.NewReader(req.Body)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return simpleResponse(500, "text/plain", []byte("Failed to start CGI process"), extraHeader)
	}
	stdout, ok := stdoutPipe.(*os.File)
	if !ok {
		return simpleResponse(500, "text/plain", []byte("Failed to start CGI process"), extraHeader)
	}

	producer, err := NewCGIResponse(cmd, stdout, time.Now().Add(DefaultCGITimeout))
	if err != nil {
		return simpleResponse(500, "text/plain", []byte("Failed to start CGI process"), extraHeader)
	}
	return producer
}

// CGIFd reports the stdout descriptor of the connection's active CGI
// child, if it is still running one. Server uses this to keep the
// Poller's registration in sync with the producer's lifecycle instead of
// ever blocking on the pipe directly.
func (c *Connection) CGIFd() (int, bool) {
	cgi, ok := c.producer.(*CGIResponse)
	if !ok || cgi.processDone {
		return 0, false
	}
	return cgi.Fd(), true
}

// cgiErrorResponse maps a CGIResponse failure, observed before any header
// byte reached the socket, to the status code the CGI Bridge contract
// promises.
func cgiErrorResponse(err error) *SimpleResponse {
	switch err {
	case ErrCGITimeout:
		return simpleResponse(504, "text/plain", []byte("Gateway Timeout"), "")
	case ErrCGINoHeaders:
		return simpleResponse(502, "text/plain", []byte("Bad Gateway"), "")
	default:
		return simpleResponse(500, "text/plain", []byte("Internal Server Error"), "")
	}
}
