/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package config

// Config is the immutable configuration tree loaded from config.yaml.
type Config struct {
	Servers []Server `yaml:"servers"`
}

// Server is one virtual host definition. Several Servers may share the
// same (host, port) pair; exactly one of them is the default for that
// pair.
type Server struct {
	ServerName        string      `yaml:"server_name"`
	Host              string      `yaml:"host"`
	Ports             []uint16    `yaml:"ports"`
	DefaultServer     bool        `yaml:"default_server"`
	ErrorPages        []ErrorPage `yaml:"error_pages"`
	ClientMaxBodySize int64       `yaml:"client_max_body_size"`
	Root              string      `yaml:"root"`
	Routes            []Route     `yaml:"routes"`
}

// ErrorPage maps a status code to a filesystem path serving its body.
type ErrorPage struct {
	Code uint16 `yaml:"code"`
	Path string `yaml:"path"`
}

// Route is a URL-path prefix with a handling policy.
type Route struct {
	Path          string   `yaml:"path"`
	Methods       []string `yaml:"methods"`
	Root          string   `yaml:"root"`
	DefaultFile   string   `yaml:"default_file,omitempty"`
	Redirect      string   `yaml:"redirect,omitempty"`
	CgiExt        string   `yaml:"cgi,omitempty"`
	ListDirectory bool     `yaml:"list_directory,omitempty"`
}

// ErrorPagePath returns the configured error page path for the given
// status code, or the empty string if none is configured.
func (s *Server) ErrorPagePath(code int) string {
	for _, ep := range s.ErrorPages {
		if int(ep.Code) == code {
			return ep.Path
		}
	}
	return ""
}

// AllowsMethod reports whether method is in the route's method list.
func (r *Route) AllowsMethod(method string) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}
