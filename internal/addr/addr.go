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

// Package addr is the Address Translator (spec.md §4.B): bidirectional,
// total conversion between the module's domain-agnostic types.Addr and
// the OS's unix.Sockaddr variants. Both directions fail only on a
// domain tag that is neither IPv4 nor IPv6.
package addr

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/govoltron/tcpip/internal/types"
)

// ErrInvArg is returned when the domain tag is neither IPv4 nor IPv6.
var ErrInvArg = errors.New("addr: invalid domain")

// ToOS converts a.
func ToOS(a types.Addr) (sa unix.Sockaddr, err error) {
	switch a.Domain {
	case types.DomainIPv4:
		s := &unix.SockaddrInet4{Port: int(a.Port)}
		copy(s.Addr[:], a.Addr4[:])
		return s, nil
	case types.DomainIPv6:
		s := &unix.SockaddrInet6{Port: int(a.Port)}
		copy(s.Addr[:], a.Addr6[:])
		return s, nil
	default:
		return nil, ErrInvArg
	}
}

// FromOS converts sa.
func FromOS(sa unix.Sockaddr) (a types.Addr, err error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		a.Domain = types.DomainIPv4
		a.Port = uint16(s.Port)
		copy(a.Addr4[:], s.Addr[:])
		return a, nil
	case *unix.SockaddrInet6:
		a.Domain = types.DomainIPv6
		a.Port = uint16(s.Port)
		copy(a.Addr6[:], s.Addr[:])
		return a, nil
	default:
		return types.Addr{}, ErrInvArg
	}
}
