/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package cgienv builds the process environment for a CGI child process
// from a request's method, path, headers and body length, per the CGI/1.1
// variable conventions (REQUEST_METHOD, QUERY_STRING, CONTENT_LENGTH,
// CONTENT_TYPE, SCRIPT_FILENAME, HTTP_*).
package cgienv

import (
	"strconv"
	"strings"

	"github.com/badu/originserv/hdr"
)

// Request is the minimal request shape the environment builder needs,
// kept independent of the engine's own request type to avoid a package
// cycle between the engine and this leaf package.
type Request struct {
	Method        string
	Path          string
	Query         string
	Version       string
	Headers       hdr.Header
	ContentLength int64
}

// Build returns the CGI environment variables for req executing scriptPath,
// appended to base (typically os.Environ()).
func Build(base []string, req Request, scriptPath string) []string {
	env := make([]string, 0, len(base)+len(req.Headers)+8)
	env = append(env, base...)

	env = append(env,
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL="+fallback(req.Version, "HTTP/1.1"),
		"REQUEST_METHOD="+req.Method,
		"SCRIPT_FILENAME="+scriptPath,
		"SCRIPT_NAME="+req.Path,
		"QUERY_STRING="+req.Query,
	)

	if req.ContentLength > 0 {
		env = append(env, "CONTENT_LENGTH="+strconv.FormatInt(req.ContentLength, 10))
	}
	if ct := req.Headers.Get(hdr.ContentType); ct != "" {
		env = append(env, "CONTENT_TYPE="+ct)
	}

	for key, values := range req.Headers {
		if key == hdr.ContentType || key == hdr.ContentLength {
			continue
		}
		if len(values) == 0 {
			continue
		}
		name := "HTTP_" + strings.ReplaceAll(strings.ToUpper(key), "-", "_")
		env = append(env, name+"="+strings.Join(values, ", "))
	}

	return env
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
