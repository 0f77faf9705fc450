// Copyright 2023 Kami
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package oscall is the OS Sockets Adapter (spec.md §4.A): a thin,
// no-logic wrapper over golang.org/x/sys/unix exposing exactly one
// function per system call the core needs. Every function returns a
// success flag plus, on failure, the OS error code; none of them
// interpret the result beyond that. All descriptors handed back by
// Socket/Accept4 are already non-blocking.
package oscall

import (
	"golang.org/x/sys/unix"

	"github.com/govoltron/tcpip/internal/types"
)

// Invalid is the sentinel file descriptor value a slot carries while its
// state is UNUSED (spec.md §3 invariant 1).
const Invalid = -1

func domainOf(d types.Domain) (int, bool) {
	switch d {
	case types.DomainIPv4:
		return unix.AF_INET, true
	case types.DomainIPv6:
		return unix.AF_INET6, true
	default:
		return 0, false
	}
}

func socktypeOf(p types.Protocol) (int, int, bool) {
	switch p {
	case types.ProtocolTCP:
		return unix.SOCK_STREAM, unix.IPPROTO_TCP, true
	case types.ProtocolUDP:
		return unix.SOCK_DGRAM, unix.IPPROTO_UDP, true
	default:
		return 0, 0, false
	}
}

// Socket creates a non-blocking descriptor for (domain, protocol).
func Socket(domain types.Domain, protocol types.Protocol) (fd int, ok bool, errno unix.Errno) {
	af, known := domainOf(domain)
	if !known {
		return Invalid, false, 0
	}
	styp, proto, known := socktypeOf(protocol)
	if !known {
		return Invalid, false, 0
	}
	fd, err := unix.Socket(af, styp|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return Invalid, false, errnoOf(err)
	}
	return fd, true, 0
}

// SetNonBlocking switches fd between blocking and non-blocking mode. The
// transmit path (spec.md §4.D udp_transmit/tcp_transmit) needs blocking
// mode for the duration of one transmit operation, across all of its
// send calls; everywhere else the
// state machine keeps descriptors non-blocking.
func SetNonBlocking(fd int, nonBlocking bool) (ok bool, errno unix.Errno) {
	if err := unix.SetNonblock(fd, nonBlocking); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Bind binds fd to sa.
func Bind(fd int, sa unix.Sockaddr) (ok bool, errno unix.Errno) {
	if err := unix.Bind(fd, sa); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Listen requests backlog pending connections on fd.
func Listen(fd int, backlog int) (ok bool, errno unix.Errno) {
	if err := unix.Listen(fd, backlog); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Connect issues a (possibly non-blocking) connect to sa.
func Connect(fd int, sa unix.Sockaddr) (ok bool, errno unix.Errno) {
	if err := unix.Connect(fd, sa); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Accept4 accepts a pending connection on fd, returning an already
// non-blocking descriptor.
func Accept4(fd int) (newfd int, sa unix.Sockaddr, ok bool, errno unix.Errno) {
	newfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return Invalid, nil, false, errnoOf(err)
	}
	return newfd, sa, true, 0
}

// SendTo writes buf to fd, optionally addressed to sa (UDP). It performs
// exactly one send syscall; callers retry on EINTR themselves
// (spec.md §4.D tcp_transmit).
func SendTo(fd int, buf []byte, sa unix.Sockaddr) (n int, ok bool, errno unix.Errno) {
	if sa != nil {
		if err := unix.Sendto(fd, buf, 0, sa); err != nil {
			return 0, false, errnoOf(err)
		}
		return len(buf), true, 0
	}
	n, err := unix.Write(fd, buf)
	if err != nil {
		return 0, false, errnoOf(err)
	}
	return n, true, 0
}

// RecvFrom reads into buf from fd. sa is non-nil only for an
// unconnected datagram socket whose peer address accompanied the
// datagram.
func RecvFrom(fd int, buf []byte) (n int, sa unix.Sockaddr, ok bool, errno unix.Errno) {
	n, from, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return 0, nil, false, errnoOf(err)
	}
	return n, from, true, 0
}

// Shutdown half-closes fd per how (unix.SHUT_RD/SHUT_WR/SHUT_RDWR).
func Shutdown(fd int, how int) (ok bool, errno unix.Errno) {
	if err := unix.Shutdown(fd, how); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Close releases fd. Exactly one call per descriptor is made over its
// lifetime: from internal/statemachine's entry-into-UNUSED logic for a
// slot's descriptor, or from its accept path for an accepted descriptor
// that never reached a slot (spec.md §9 "Ownership of OS handles").
func Close(fd int) (ok bool, errno unix.Errno) {
	if err := unix.Close(fd); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Getsockname returns the local address bound to fd.
func Getsockname(fd int) (sa unix.Sockaddr, ok bool, errno unix.Errno) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, false, errnoOf(err)
	}
	return sa, true, 0
}

// Getpeername returns the remote address fd is connected to.
func Getpeername(fd int) (sa unix.Sockaddr, ok bool, errno unix.Errno) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil, false, errnoOf(err)
	}
	return sa, true, 0
}

// SetKeepAlive maps TCP_KEEPALIVE (spec.md §4.D change_parameter) onto
// the equivalent SO_KEEPALIVE socket option.
func SetKeepAlive(fd int, on bool) (ok bool, errno unix.Errno) {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v); err != nil {
		return false, errnoOf(err)
	}
	return true, 0
}

// Poll performs exactly one non-blocking multiplex call over fds
// (spec.md §4.G "one non-blocking poll"); timeoutMs must be 0.
func Poll(fds []unix.PollFd, timeoutMs int) (n int, ok bool, errno unix.Errno) {
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		return 0, false, errnoOf(err)
	}
	return n, true, 0
}

func errnoOf(err error) unix.Errno {
	if errno, is := err.(unix.Errno); is {
		return errno
	}
	return unix.EIO
}
