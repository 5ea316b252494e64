/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/badu/originserv/internal/config"
	"github.com/badu/originserv/internal/session"
)

// connTimeout is how long a connection may sit idle before the timeout
// sweep closes it.
const connTimeout = 5 * time.Second

// boundListener pairs a Listener's configuration with its live fd.
type boundListener struct {
	info *Listener
	fd   int
}

// Server owns the poller, every bound listener, every live connection and
// the shared session store — the whole of the single-threaded event loop.
type Server struct {
	log       *logrus.Logger
	poller    *Poller
	listeners map[int]*boundListener
	conns     map[int]*Connection
	sessions  *session.Store

	// cgiOwner and cgiByConn together track which connection owns which
	// registered CGI stdout fd, so a readiness event on that fd can be
	// routed back to the connection that's waiting on it, the same way
	// ev.Fd is routed to a connection or listener in Run.
	cgiOwner  map[int]int // cgi stdout fd -> owning connection fd
	cgiByConn map[int]int // connection fd -> its registered cgi stdout fd
}

// New builds a Server for cfg, binding every (host, port) listener but not
// yet running the event loop.
func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	poller, err := NewPoller()
	if err != nil {
		return nil, fmt.Errorf("originserv: creating poller: %w", err)
	}

	s := &Server{
		log:       log,
		poller:    poller,
		listeners: make(map[int]*boundListener),
		conns:     make(map[int]*Connection),
		sessions:  session.NewStore(session.DefaultTTL),
		cgiOwner:  make(map[int]int),
		cgiByConn: make(map[int]int),
	}

	for _, l := range BuildListeners(cfg) {
		fd, err := listenTCP(l.Host, l.Port)
		if err != nil {
			return nil, fmt.Errorf("originserv: binding %s: %w", l.Addr(), err)
		}
		if err := poller.Add(fd); err != nil {
			return nil, fmt.Errorf("originserv: registering listener %s: %w", l.Addr(), err)
		}
		s.listeners[fd] = &boundListener{info: l, fd: fd}
		s.log.WithField("addr", l.Addr()).WithField("servers", len(l.Servers)).Info("listening")
	}

	return s, nil
}

// Run drives the event loop until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		default:
		}

		s.sessions.GC(time.Now())
		s.sweepTimeouts()

		events, err := s.poller.Wait()
		if err != nil {
			return fmt.Errorf("originserv: poll: %w", err)
		}

		for _, ev := range events {
			if bl, ok := s.listeners[ev.Fd]; ok {
				s.acceptOn(bl)
				continue
			}
			if connFd, ok := s.cgiOwner[ev.Fd]; ok {
				s.driveConnection(connFd)
				continue
			}
			s.driveConnection(ev.Fd)
		}
	}
}

func (s *Server) acceptOn(bl *boundListener) {
	fds, err := acceptAll(bl.fd)
	if err != nil {
		s.log.WithError(err).Warn("accept error")
	}
	for _, fd := range fds {
		if err := s.poller.Add(fd); err != nil {
			s.log.WithError(err).Warn("registering connection")
			closeFdQuietly(fd)
			continue
		}
		s.conns[fd] = NewConnection(fd, bl.info, s.sessions)
	}
}

func (s *Server) driveConnection(fd int) {
	conn, ok := s.conns[fd]
	if !ok {
		return
	}
	for {
		result := conn.Step()
		s.syncCGIRegistration(fd, conn)
		switch result {
		case stepContinue:
			continue
		case stepBlocked:
			return
		case stepClose:
			s.closeConnection(fd)
			return
		}
	}
}

// syncCGIRegistration registers conn's active CGI stdout fd with the
// poller the moment dispatchCGI creates one, and deregisters it again as
// soon as the producer has nothing left to read — it never leaves a
// stale registration for the poller to report on a closed fd.
func (s *Server) syncCGIRegistration(connFd int, conn *Connection) {
	cgiFd, active := conn.CGIFd()
	prevFd, tracked := s.cgiByConn[connFd]

	if active && !tracked {
		if err := s.poller.Add(cgiFd); err != nil {
			s.log.WithError(err).Warn("registering cgi fd")
			return
		}
		s.cgiByConn[connFd] = cgiFd
		s.cgiOwner[cgiFd] = connFd
		return
	}
	if active && tracked && cgiFd != prevFd {
		_ = s.poller.Remove(prevFd)
		delete(s.cgiOwner, prevFd)
		if err := s.poller.Add(cgiFd); err != nil {
			s.log.WithError(err).Warn("registering cgi fd")
			delete(s.cgiByConn, connFd)
			return
		}
		s.cgiByConn[connFd] = cgiFd
		s.cgiOwner[cgiFd] = connFd
		return
	}
	if !active && tracked {
		s.untrackCGI(connFd, prevFd)
	}
}

func (s *Server) untrackCGI(connFd, cgiFd int) {
	_ = s.poller.Remove(cgiFd)
	delete(s.cgiOwner, cgiFd)
	delete(s.cgiByConn, connFd)
}

func (s *Server) closeConnection(fd int) {
	conn, ok := s.conns[fd]
	if !ok {
		return
	}
	if cgiFd, tracked := s.cgiByConn[fd]; tracked {
		s.untrackCGI(fd, cgiFd)
	}
	_ = s.poller.Remove(fd)
	conn.Close()
	delete(s.conns, fd)
}

func (s *Server) sweepTimeouts() {
	now := time.Now()
	var expired []int
	for fd, conn := range s.conns {
		if now.Sub(conn.ttl) > connTimeout {
			expired = append(expired, fd)
		}
	}
	for _, fd := range expired {
		s.closeConnection(fd)
	}
}

func (s *Server) shutdown() error {
	for fd := range s.conns {
		s.closeConnection(fd)
	}
	for fd := range s.listeners {
		_ = s.poller.Remove(fd)
		closeFdQuietly(fd)
	}
	return s.poller.Close()
}
