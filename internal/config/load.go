/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 80
	defaultClientMaxBodySize = 1_000_000
)

// ErrNoServers is returned by Load when the decoded config has no servers.
var ErrNoServers = errors.New("config: at least one server is required")

// Load reads and strictly decodes the YAML configuration at path, applying
// the documented defaults and rejecting unknown keys.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}

	for i := range cfg.Servers {
		applyServerDefaults(&cfg.Servers[i])
		if err := validateServer(&cfg.Servers[i]); err != nil {
			return nil, fmt.Errorf("config: server %d: %w", i, err)
		}
	}

	return &cfg, nil
}

func applyServerDefaults(s *Server) {
	if len(s.Ports) == 0 {
		s.Ports = []uint16{defaultPort}
	}
	if s.ClientMaxBodySize == 0 {
		s.ClientMaxBodySize = defaultClientMaxBodySize
	}
	if s.ServerName == "" {
		s.ServerName = s.Host
	}
}

func validateServer(s *Server) error {
	if s.Host == "" {
		return errors.New("missing 'host'")
	}
	for i := range s.Routes {
		r := &s.Routes[i]
		if r.Path == "" {
			return fmt.Errorf("route %d missing 'path'", i)
		}
		if len(r.Methods) == 0 {
			return fmt.Errorf("route %d missing 'methods'", i)
		}
	}
	return nil
}
