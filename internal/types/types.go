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

// Package types holds the data model shared by every internal package of
// the transport adaptation layer: domains, protocols, addresses, socket
// states and the upper-layer callback contracts. It has no dependents
// outside this module and exists so that internal/oscall, internal/addr,
// internal/socktab, internal/statemachine and internal/tick can all speak
// the same vocabulary without importing the root package (which imports
// them).
package types

import "fmt"

// Domain is the address-family selector carried on a socket slot.
type Domain uint8

const (
	// DomainIPv4 is the AUTOSAR wire value for an IPv4 socket.
	DomainIPv4 Domain = 0x02
	// DomainIPv6 is the AUTOSAR wire value for an IPv6 socket.
	DomainIPv6 Domain = 0x1C
)

func (d Domain) String() string {
	switch d {
	case DomainIPv4:
		return "IPv4"
	case DomainIPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("Domain(0x%02x)", uint8(d))
	}
}

// Protocol is the transport-protocol selector carried on a socket slot.
type Protocol uint8

const (
	// ProtocolTCP is the AUTOSAR wire value for a stream socket.
	ProtocolTCP Protocol = 0x06
	// ProtocolUDP is the AUTOSAR wire value for a datagram socket.
	ProtocolUDP Protocol = 0x11
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	default:
		return fmt.Sprintf("Protocol(0x%02x)", uint8(p))
	}
}

// SocketID is the external, stable handle a caller uses to refer to a slot.
// It is equal to the slot's index in the socket table for its entire
// lifetime (spec invariant 3).
type SocketID uint16

// InvalidSocketID is the reserved sentinel returned when no slot could be
// allocated or produced.
const InvalidSocketID SocketID = 0xFFFF

// Well-known sentinels from the AUTOSAR TcpIp contract.
const (
	// PortAny asks bind to let the OS assign an ephemeral port.
	PortAny uint16 = 0
	// LocalAddrIDAny is the only local-address selector this
	// implementation accepts; others are reserved.
	LocalAddrIDAny uint8 = 0xFF
	// DefaultMaxPacketSize is the default scratch-buffer size used for
	// both the stack receive buffer and each slot's tx_buffer.
	DefaultMaxPacketSize = 1024
)

// Result mirrors the AUTOSAR Std_ReturnType contract: every synchronous
// public operation returns one of these two values, never a Go error,
// so that the module's ABI matches spec.md exactly. Asynchronous outcomes
// travel exclusively through callbacks (spec.md §7).
type Result uint8

const (
	E_OK Result = iota
	E_NOT_OK
)

func (r Result) String() string {
	if r == E_OK {
		return "E_OK"
	}
	return "E_NOT_OK"
}

// Ok reports whether r is the success value.
func (r Result) Ok() bool { return r == E_OK }

// ResultOf converts a boolean success flag into a Result, the single
// conversion point every internal package uses so "true means E_OK" is
// never spelled out twice.
func ResultOf(ok bool) Result {
	if ok {
		return E_OK
	}
	return E_NOT_OK
}

// DevError enumerates the development-error ids reported to the
// best-effort error sink (spec.md §7); values are illustrative AUTOSAR-
// style identifiers, not wire-significant outside this module.
type DevError uint8

const (
	ErrParamPointer DevError = iota + 1
	ErrInvArg
	ErrProtocol
	ErrAddrInUse
	ErrMsgSize
	// ErrNoBufS reports a resource exhaustion failure (spec.md §7), such
	// as get_socket finding no free slot in the table. Distinct from
	// ErrInvArg, which is reserved for a caller-supplied argument being
	// invalid rather than the module running out of capacity.
	ErrNoBufS
)

func (e DevError) String() string {
	switch e {
	case ErrParamPointer:
		return "PARAM_POINTER"
	case ErrInvArg:
		return "INV_ARG"
	case ErrProtocol:
		return "PROTOCOL"
	case ErrAddrInUse:
		return "ADDRINUSE"
	case ErrMsgSize:
		return "MSGSIZE"
	case ErrNoBufS:
		return "NOBUFS"
	default:
		return fmt.Sprintf("DevError(%d)", uint8(e))
	}
}

// ApiID identifies which public operation produced a dev-error report,
// for the ReportError(module_id, instance_id, api_id, error_id) sink.
type ApiID uint8

const (
	ApiGetSocket ApiID = iota
	ApiBind
	ApiTcpListen
	ApiTcpConnect
	ApiTcpTransmit
	ApiUdpTransmit
	ApiClose
	ApiChangeParameter
	ApiRequestComMode
	ApiMainFunction
	ApiTcpReceived
)

// Event is an upper-layer notification kind emitted via TcpIpEvent.
type Event uint8

const (
	EventUDPClosed Event = iota
	EventTCPClosed
	EventTCPReset
	EventTCPFinReceived
)

func (e Event) String() string {
	switch e {
	case EventUDPClosed:
		return "UDP_CLOSED"
	case EventTCPClosed:
		return "TCP_CLOSED"
	case EventTCPReset:
		return "TCP_RESET"
	case EventTCPFinReceived:
		return "TCP_FIN_RECEIVED"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

// CopyTxResult is the pull-callback outcome the upper layer returns from
// CopyTxData.
type CopyTxResult uint8

const (
	CopyTxOK CopyTxResult = iota
	CopyTxBusy
	CopyTxNotOK
	CopyTxOvfl
)

// ComMode is a commandable controller mode. Startup and shutdown are
// internal-only states and are deliberately not members of this type, so
// that RequestComMode can never be called with them (spec.md §3).
type ComMode uint8

const (
	ComModeOffline ComMode = iota
	ComModeOnline
	ComModeOnHold
)

func (m ComMode) String() string {
	switch m {
	case ComModeOffline:
		return "OFFLINE"
	case ComModeOnline:
		return "ONLINE"
	case ComModeOnHold:
		return "ONHOLD"
	default:
		return fmt.Sprintf("ComMode(%d)", uint8(m))
	}
}

// ControllerState is the full controller lifecycle, including the two
// internal states (Startup/Shutdown) that are illegal RequestComMode
// arguments but are reachable states of the controller itself.
type ControllerState uint8

const (
	ControllerStartup ControllerState = iota
	ControllerOnline
	ControllerOnHold
	ControllerOffline
	ControllerShutdown
)

// Param is a change_parameter selector. Only ParamTCPKeepAlive is
// implemented; every other value is reserved (spec.md §4.D, SPEC_FULL.md
// original_source supplement).
type Param uint8

const (
	ParamTCPKeepAlive Param = iota
	ParamReserved
)

// Addr is the domain-agnostic address record every public API speaks.
// It is a tagged union over IPv4/IPv6 whose tag is the Domain byte,
// modeled as an explicit Go sum instead of the source's union-with-
// shared-prefix idiom (spec.md §9).
type Addr struct {
	Domain Domain
	// Port is stored in host byte order at this layer; internal/addr
	// copies it as is into a unix.Sockaddr, and golang.org/x/sys/unix
	// converts it to network byte order when the Sockaddr is used.
	Port uint16
	// Addr4 holds the 32-bit IPv4 address (meaningful iff Domain ==
	// DomainIPv4), or the first word of a fixed 4-word array otherwise
	// required by spec.md §4.B ("a fixed 4-word array; for IPv4 only the
	// first word is meaningful").
	Addr4 [4]byte
	// Addr6 holds the 128-bit IPv6 address (meaningful iff Domain ==
	// DomainIPv6).
	Addr6 [16]byte
}

func (a Addr) String() string {
	switch a.Domain {
	case DomainIPv4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr4[0], a.Addr4[1], a.Addr4[2], a.Addr4[3], a.Port)
	case DomainIPv6:
		return fmt.Sprintf("[%x]:%d", a.Addr6, a.Port)
	default:
		return "invalid-addr"
	}
}

// State is a socket slot's position in the state machine (spec.md §4.D).
// It is a closed sum: every switch over State in this module must be
// exhaustive, and internal/statemachine panics rather than silently
// falling through to a default case for an unhandled state.
type State uint8

const (
	StateUnused State = iota
	StateAllocated
	StateBound
	StateListen
	StateConnecting
	StateConnected
	StateShutdown
	StateFinished

	numStates
)

func (s State) String() string {
	switch s {
	case StateUnused:
		return "UNUSED"
	case StateAllocated:
		return "ALLOCATED"
	case StateBound:
		return "BOUND"
	case StateListen:
		return "LISTEN"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateShutdown:
		return "SHUTDOWN"
	case StateFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the eight defined states.
func (s State) Valid() bool { return s < numStates }

// Interest is the readiness-event mask the tick driver asks the OS
// multiplexer to observe for a slot (spec.md §3 "Readiness-interest
// record").
type Interest uint8

const (
	InterestNone     Interest = 0
	InterestReadable Interest = 1 << 0
	InterestWritable Interest = 1 << 1
)

// SocketAdapter is the set of callbacks the upper layer (out of scope,
// spec.md §1) supplies; the core invokes these and nothing else when
// notifying the application.
type SocketAdapter interface {
	// TcpConnected fires on CONNECTING -> CONNECTED.
	TcpConnected(id SocketID)
	// TcpAccepted fires when a LISTEN slot accepts a new connection; if
	// it returns false, the core releases newID and closes its
	// descriptor (spec.md §6).
	TcpAccepted(listenID, newID SocketID, remote Addr) (ok bool)
	// RxIndication delivers received application data.
	RxIndication(id SocketID, remote Addr, data []byte)
	// TcpIpEvent delivers a termination or half-close notification.
	TcpIpEvent(id SocketID, event Event)
	// CopyTxData pulls up to len(dst) bytes from the upper layer's
	// pending send buffer for id. The slot id is always what is passed
	// here, never an OS descriptor (SPEC_FULL.md Open Question #1).
	CopyTxData(id SocketID, dst []byte) (n int, result CopyTxResult)
}

// ErrorReporter is the best-effort development-error sink (spec.md §6).
// Reports never affect a public operation's return value.
type ErrorReporter interface {
	ReportError(moduleID uint16, instanceID uint8, apiID ApiID, errorID DevError)
}

// ModuleID is the fixed AUTOSAR module id for TcpIp, used on every
// ReportError call (spec.md §6).
const ModuleID uint16 = 170
