/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// listenTCP creates a non-blocking, listening IPv4 TCP socket on host:port,
// driven directly by raw fd syscalls rather than net.Listen, so the event
// loop — not the Go runtime's own netpoller — decides when to retry it.
func listenTCP(host string, port uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}

	addr, err := resolveIPv4(host)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}

	sa := &unix.SockaddrInet4{Port: int(port), Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	var addr [4]byte
	if host == "" || host == "0.0.0.0" {
		return addr, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return addr, fmt.Errorf("originserv: cannot resolve host %q: %w", host, err)
		}
		ip = resolved.IP
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return addr, fmt.Errorf("originserv: host %q is not an IPv4 address", host)
	}
	copy(addr[:], ip4)
	return addr, nil
}

// acceptAll drains every pending connection on listenFd, returning their
// non-blocking client fds. It stops at the first EAGAIN/EWOULDBLOCK.
func acceptAll(listenFd int) ([]int, error) {
	var accepted []int
	for {
		fd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return accepted, nil
			}
			return accepted, err
		}
		accepted = append(accepted, fd)
	}
}

// wouldBlock reports whether err is the raw-syscall WouldBlock signal.
func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// closeFdQuietly closes fd, discarding the error; used for best-effort
// cleanup paths where there is no meaningful recovery.
func closeFdQuietly(fd int) {
	_ = unix.Close(fd)
}
