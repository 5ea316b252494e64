/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"strconv"
	"strings"

	"github.com/badu/originserv/hdr"
	"github.com/badu/originserv/internal/config"
)

// ExtractHostname returns the Host header's hostname, with any ":port"
// suffix stripped. It returns "" if no Host header was sent.
func ExtractHostname(h hdr.Header) string {
	host := h.Get(hdr.Host)
	if host == "" {
		return ""
	}
	name, _, _ := strings.Cut(host, ":")
	return name
}

// SelectServer picks the virtual host for hostname among the servers
// sharing one Listener: an exact server_name match, or the listener's
// default server if none matches. The Connection State Machine latches the
// choice for the rest of the request; after a keep-alive reset it selects
// again for the next request on the same connection.
func SelectServer(l *Listener, hostname string) *config.Server {
	for _, srv := range l.Servers {
		if srv.ServerName == hostname {
			return srv
		}
	}
	return l.DefaultServer()
}

// FindMatchingRoute returns the longest-prefix route matching requestPath,
// where a route path of "/" always matches and a non-root route only
// matches when requestPath equals it exactly or continues with "/" (so
// route "/a" does not match request path "/ab").
func FindMatchingRoute(srv *config.Server, requestPath string) *config.Route {
	var best *config.Route
	for i := range srv.Routes {
		route := &srv.Routes[i]
		if !routeMatches(route.Path, requestPath) {
			continue
		}
		if best == nil || len(route.Path) > len(best.Path) {
			best = route
		}
	}
	return best
}

func routeMatches(routePath, requestPath string) bool {
	if routePath == "/" {
		return true
	}
	trimmed := strings.TrimSuffix(routePath, "/")
	if requestPath == routePath || requestPath == trimmed {
		return true
	}
	return strings.HasPrefix(requestPath, trimmed+"/")
}

// ErrorPagePath returns the configured error page for status, falling back
// to a conventional ./error_pages/<code>.html path when the server defines
// no override.
func ErrorPagePath(srv *config.Server, status int) string {
	if path := srv.ErrorPagePath(status); path != "" {
		return path
	}
	return "./error_pages/" + strconv.Itoa(status) + ".html"
}
