/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"fmt"

	"github.com/badu/originserv/internal/config"
)

// Listener is a single bound (host, port) socket shared by every virtual
// host configured for that pair, per the Listener Setup component.
type Listener struct {
	Host         string
	Port         uint16
	Servers      []*config.Server
	DefaultIndex int
}

// Addr returns the "host:port" string Listen should bind.
func (l *Listener) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// DefaultServer returns the listener's fallback virtual host.
func (l *Listener) DefaultServer() *config.Server {
	if l.DefaultIndex < 0 || l.DefaultIndex >= len(l.Servers) {
		return l.Servers[0]
	}
	return l.Servers[l.DefaultIndex]
}

// BuildListeners groups every configured server by its (host, port) pairs,
// coalescing servers that share a pair onto one Listener, and picks each
// Listener's default server: the one with default_server: true, or the
// first server registered for that pair if none is marked.
func BuildListeners(cfg *config.Config) []*Listener {
	index := make(map[string]*Listener)
	var order []string

	for i := range cfg.Servers {
		srv := &cfg.Servers[i]
		for _, port := range srv.Ports {
			key := fmt.Sprintf("%s:%d", srv.Host, port)
			l, ok := index[key]
			if !ok {
				l = &Listener{Host: srv.Host, Port: port, DefaultIndex: -1}
				index[key] = l
				order = append(order, key)
			}
			if srv.DefaultServer {
				l.DefaultIndex = len(l.Servers)
			}
			l.Servers = append(l.Servers, srv)
		}
	}

	listeners := make([]*Listener, 0, len(order))
	for _, key := range order {
		l := index[key]
		if l.DefaultIndex < 0 {
			l.DefaultIndex = 0
		}
		listeners = append(listeners, l)
	}
	return listeners
}
