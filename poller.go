/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"golang.org/x/sys/unix"
)

// pollMaxWaitMillis bounds how long Poller.Wait blocks, so the caller can
// run periodic work (session GC, connection timeout sweep) even when no
// socket is ready.
const pollMaxWaitMillis = 100

// Readable and Writable are the readiness bits Events reports, mirroring
// EPOLLIN/EPOLLOUT without leaking the epoll event mask to callers.
const (
	Readable = 1 << iota
	Writable
)

// Event is one fd's readiness report from a Wait call.
type Event struct {
	Fd    int
	Flags uint32
}

// Poller is a thin, Linux-only wrapper over epoll, registering every
// socket for both read and write readiness exactly once at Add time — the
// Connection State Machine never re-registers per phase, it just ignores
// the readiness bit it doesn't currently care about.
type Poller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates an epoll instance.
func NewPoller() (*Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Poller{
		epfd:   fd,
		events: make([]unix.EpollEvent, 1024),
	}, nil
}

// Add registers fd for edge-triggered read and write readiness.
func (p *Poller) Add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Remove deregisters fd. Safe to call on an fd that was never added.
func (p *Poller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to pollMaxWaitMillis and returns the ready fds.
func (p *Poller) Wait() ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, pollMaxWaitMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		flags := uint32(0)
		if p.events[i].Events&unix.EPOLLIN != 0 {
			flags |= Readable
		}
		if p.events[i].Events&unix.EPOLLOUT != 0 {
			flags |= Writable
		}
		out = append(out, Event{Fd: int(p.events[i].Fd), Flags: flags})
	}
	return out, nil
}

// Close releases the epoll fd.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
