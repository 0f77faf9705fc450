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

// Package statemachine is the heart of the core (spec.md §4.D): the
// per-slot state enum, the single entry function that sets state,
// readiness interest and emits notifications, the synchronous lifecycle
// operations, and the per-state tick handlers. Every switch over
// types.State here is exhaustive; an unhandled state panics instead of
// silently falling through a default case (spec.md §9).
package statemachine

import (
	"golang.org/x/sys/unix"
	"go.uber.org/zap"

	"github.com/govoltron/tcpip/internal/addr"
	"github.com/govoltron/tcpip/internal/oscall"
	"github.com/govoltron/tcpip/internal/socktab"
	"github.com/govoltron/tcpip/internal/types"
)

// Engine owns the socket table and drives every synchronous operation
// and every tick handler over it. It is not safe for concurrent use
// from more than one execution context (spec.md §5): callers must call
// every method, including Dispatch, from the same cooperative context.
type Engine struct {
	table         *socktab.Table
	adapter       types.SocketAdapter
	reporter      types.ErrorReporter
	log           *zap.Logger
	instanceID    uint8
	maxPacketSize int
	rxBuf         []byte
}

// Config holds everything the engine needs at construction.
type Config struct {
	Capacity      int
	MaxPacketSize int
	Adapter       types.SocketAdapter
	Reporter      types.ErrorReporter
	Logger        *zap.Logger
	InstanceID    uint8
}

// New builds an engine with a fresh, fully-UNUSED socket table.
func New(cfg Config) *Engine {
	if cfg.MaxPacketSize <= 0 {
		cfg.MaxPacketSize = types.DefaultMaxPacketSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		table:         socktab.New(cfg.Capacity, cfg.MaxPacketSize),
		adapter:       cfg.Adapter,
		reporter:      cfg.Reporter,
		log:           cfg.Logger,
		instanceID:    cfg.InstanceID,
		maxPacketSize: cfg.MaxPacketSize,
		rxBuf:         make([]byte, cfg.MaxPacketSize),
	}
}

// Table exposes the underlying socket table to internal/tick, which
// needs to walk every live slot once per call to rebuild the poll set.
func (e *Engine) Table() *socktab.Table { return e.table }

func (e *Engine) report(api types.ApiID, errID types.DevError) {
	if e.reporter != nil {
		e.reporter.ReportError(types.ModuleID, e.instanceID, api, errID)
	}
}

// interestFor is the single source of truth for the readiness-interest
// table in spec.md §4.D.
func interestFor(s types.State) types.Interest {
	switch s {
	case types.StateUnused, types.StateAllocated:
		return types.InterestNone
	case types.StateBound, types.StateListen, types.StateConnected, types.StateShutdown, types.StateFinished:
		return types.InterestReadable
	case types.StateConnecting:
		return types.InterestWritable
	default:
		panic("statemachine: unreachable state in interestFor")
	}
}

// emissionFor is the single source of truth for the notification table
// in spec.md §4.D. It reports only the TcpIpEvent half of the table;
// the CONNECTING -> CONNECTED TcpConnected callback is handled
// separately in enter because it is not a types.Event.
func emissionFor(from, to types.State, protocol types.Protocol) (ev types.Event, emit bool) {
	if to == types.StateFinished {
		return types.EventTCPFinReceived, true
	}
	if to == types.StateUnused && from != types.StateUnused {
		if protocol == types.ProtocolUDP {
			return types.EventUDPClosed, true
		}
		if from == types.StateConnected {
			return types.EventTCPReset, true
		}
		return types.EventTCPClosed, true
	}
	return 0, false
}

// enter is THE entry function (spec.md §4.D): the only place that sets
// state, sets readiness interest, closes a slot's OS handle, and emits
// the transition notifications (TcpConnected, TcpIpEvent). TcpAccepted
// and RxIndication are emitted by accept and receive, and accept closes
// an accepted descriptor that never reached a slot. Notifications are
// emitted before the handle is closed.
func (e *Engine) enter(id types.SocketID, slot *socktab.Slot, newState types.State) {
	if !newState.Valid() {
		panic("statemachine: enter into invalid state")
	}
	from := slot.State

	connected := from == types.StateConnecting && newState == types.StateConnected
	ev, emit := emissionFor(from, newState, slot.Protocol)

	slot.State = newState
	slot.Interest = interestFor(newState)

	if connected {
		e.adapter.TcpConnected(id)
	}
	if emit {
		e.adapter.TcpIpEvent(id, ev)
	}

	if newState == types.StateUnused && slot.FD != oscall.Invalid {
		oscall.Close(slot.FD)
		slot.FD = oscall.Invalid
	}

	e.log.Debug("state transition",
		zap.Uint16("slot", uint16(id)),
		zap.String("from", from.String()),
		zap.String("to", newState.String()),
	)
}

// Allocate implements get_socket (spec.md §4.C).
func (e *Engine) Allocate(domain types.Domain, protocol types.Protocol) (id types.SocketID, result types.Result) {
	id, ok := e.table.FindFree()
	if !ok {
		e.report(types.ApiGetSocket, types.ErrNoBufS)
		return types.InvalidSocketID, types.E_NOT_OK
	}
	fd, ok, _ := oscall.Socket(domain, protocol)
	if !ok {
		return types.InvalidSocketID, types.E_NOT_OK
	}
	slot := e.table.Get(id)
	slot.Domain, slot.Protocol, slot.FD = domain, protocol, fd
	e.enter(id, slot, types.StateAllocated)
	return id, types.E_OK
}

// Bind implements bind (spec.md §4.D). The lifecycle only ever reaches
// BOUND from ALLOCATED (spec.md §3), so any other state — including an
// already-BOUND, LISTEN or CONNECTED slot — is rejected rather than
// silently re-bound.
func (e *Engine) Bind(id types.SocketID, localAddrID uint8, port *uint16) types.Result {
	slot := e.table.Get(id)
	if slot == nil || port == nil {
		e.report(types.ApiBind, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if slot.State != types.StateAllocated {
		e.report(types.ApiBind, types.ErrInvArg)
		return types.E_NOT_OK
	}
	if localAddrID != types.LocalAddrIDAny {
		e.report(types.ApiBind, types.ErrInvArg)
		return types.E_NOT_OK
	}
	sa, err := addr.ToOS(types.Addr{Domain: slot.Domain, Port: *port})
	if err != nil {
		e.report(types.ApiBind, types.ErrInvArg)
		return types.E_NOT_OK
	}
	ok, errno := oscall.Bind(slot.FD, sa)
	if !ok {
		if errno == unix.EADDRINUSE {
			e.report(types.ApiBind, types.ErrAddrInUse)
		}
		return types.E_NOT_OK
	}
	got, ok := e.LocalAddr(id)
	if !ok {
		return types.E_NOT_OK
	}
	*port = got.Port
	e.enter(id, slot, types.StateBound)
	return types.E_OK
}

// LocalAddr reads back the local address and port the OS assigned to
// id, generalizing the original's TcpIp_GetIpAddr/TcpIp_GetPhysAddr
// readback (SPEC_FULL.md original_source supplement) into one accessor
// usable after both bind and connect. ok is false if id is not a live
// slot or the underlying getsockname call fails.
func (e *Engine) LocalAddr(id types.SocketID) (a types.Addr, ok bool) {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		return types.Addr{}, false
	}
	sa, ok, _ := oscall.Getsockname(slot.FD)
	if !ok {
		return types.Addr{}, false
	}
	a, err := addr.FromOS(sa)
	if err != nil {
		return types.Addr{}, false
	}
	return a, true
}

// TcpListen implements tcp_listen (spec.md §4.D).
func (e *Engine) TcpListen(id types.SocketID, channels int) types.Result {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		e.report(types.ApiTcpListen, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if slot.Protocol != types.ProtocolTCP {
		e.report(types.ApiTcpListen, types.ErrProtocol)
		return types.E_NOT_OK
	}
	ok, _ := oscall.Listen(slot.FD, channels)
	if !ok {
		return types.E_NOT_OK
	}
	e.enter(id, slot, types.StateListen)
	return types.E_OK
}

// TcpConnect implements tcp_connect (spec.md §4.D).
func (e *Engine) TcpConnect(id types.SocketID, remote types.Addr) types.Result {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		e.report(types.ApiTcpConnect, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if slot.Protocol != types.ProtocolTCP {
		e.report(types.ApiTcpConnect, types.ErrProtocol)
		return types.E_NOT_OK
	}
	if remote.Domain != slot.Domain {
		e.report(types.ApiTcpConnect, types.ErrInvArg)
		return types.E_NOT_OK
	}
	sa, err := addr.ToOS(remote)
	if err != nil {
		e.report(types.ApiTcpConnect, types.ErrInvArg)
		return types.E_NOT_OK
	}
	ok, errno := oscall.Connect(slot.FD, sa)
	if ok {
		e.enter(id, slot, types.StateConnected)
		return types.E_OK
	}
	if errno == unix.EINPROGRESS {
		e.enter(id, slot, types.StateConnecting)
		return types.E_OK
	}
	return types.E_NOT_OK
}

// UdpTransmit implements udp_transmit (spec.md §4.D).
func (e *Engine) UdpTransmit(id types.SocketID, data []byte, remote types.Addr, length int) types.Result {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		e.report(types.ApiUdpTransmit, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if remote.Domain != slot.Domain {
		e.report(types.ApiUdpTransmit, types.ErrProtocol)
		return types.E_NOT_OK
	}
	var buf []byte
	if data == nil {
		if length > len(slot.TxBuf) {
			e.report(types.ApiUdpTransmit, types.ErrMsgSize)
			return types.E_NOT_OK
		}
		n, res := e.adapter.CopyTxData(id, slot.TxBuf[:length])
		if res != types.CopyTxOK {
			return types.E_NOT_OK
		}
		buf = slot.TxBuf[:n]
	} else {
		buf = data
	}

	sa, err := addr.ToOS(remote)
	if err != nil {
		e.report(types.ApiUdpTransmit, types.ErrInvArg)
		return types.E_NOT_OK
	}

	if ok, _ := oscall.SetNonBlocking(slot.FD, false); !ok {
		return types.E_NOT_OK
	}
	n, ok, errno := oscall.SendTo(slot.FD, buf, sa)
	oscall.SetNonBlocking(slot.FD, true)

	if !ok || n < len(buf) || errno == unix.EMSGSIZE {
		e.report(types.ApiUdpTransmit, types.ErrMsgSize)
		return types.E_NOT_OK
	}
	return types.E_OK
}

// TcpTransmit implements tcp_transmit (spec.md §4.D).
func (e *Engine) TcpTransmit(id types.SocketID, data []byte, available int, force bool) types.Result {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		e.report(types.ApiTcpTransmit, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if slot.Protocol != types.ProtocolTCP {
		e.report(types.ApiTcpTransmit, types.ErrProtocol)
		return types.E_NOT_OK
	}

	if ok, _ := oscall.SetNonBlocking(slot.FD, false); !ok {
		return types.E_NOT_OK
	}
	defer oscall.SetNonBlocking(slot.FD, true)

	remaining := available
	offset := 0

	for remaining > 0 {
		chunkSize := remaining
		if chunkSize > len(slot.TxBuf) {
			chunkSize = len(slot.TxBuf)
		}

		var chunk []byte
		if data != nil {
			chunk = data[offset : offset+chunkSize]
		} else {
			n, res := e.adapter.CopyTxData(id, slot.TxBuf[:chunkSize])
			switch res {
			case types.CopyTxOK:
				chunk = slot.TxBuf[:n]
			case types.CopyTxBusy:
				return types.E_OK
			default:
				return types.E_NOT_OK
			}
		}

		sent := 0
		for sent < len(chunk) {
			n, ok, errno := oscall.SendTo(slot.FD, chunk[sent:], nil)
			if !ok {
				if errno == unix.EINTR {
					continue
				}
				return types.E_NOT_OK
			}
			sent += n
		}

		if data != nil {
			offset += chunkSize
		}
		remaining -= chunkSize

		if !force {
			break
		}
	}
	return types.E_OK
}

// Close implements close (spec.md §4.D).
func (e *Engine) Close(id types.SocketID, abort bool) types.Result {
	slot := e.table.Get(id)
	if slot == nil {
		e.report(types.ApiClose, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if slot.State == types.StateUnused {
		return types.E_OK
	}
	if abort || slot.State != types.StateConnected {
		e.enter(id, slot, types.StateUnused)
		return types.E_OK
	}
	ok, _ := oscall.Shutdown(slot.FD, unix.SHUT_WR)
	if !ok {
		return types.E_NOT_OK
	}
	e.enter(id, slot, types.StateShutdown)
	return types.E_OK
}

// TcpReceived implements tcp_received (spec.md §6), the RX-window flow
// control acknowledgement: the upper layer reports how many bytes of a
// prior RxIndication it has consumed, so the core could throttle
// further receives once a window fills. The original
// (original_source/source/TcpIp.c TcpIp_TcpReceived) is itself a stub
// that always returns E_OK without acting on len; spec.md never
// specifies an RX-window policy for this module, so this keeps that
// no-op behavior rather than inventing one, only validating that id
// names a live TCP slot.
func (e *Engine) TcpReceived(id types.SocketID, length uint32) types.Result {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		e.report(types.ApiTcpReceived, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	if slot.Protocol != types.ProtocolTCP {
		e.report(types.ApiTcpReceived, types.ErrProtocol)
		return types.E_NOT_OK
	}
	return types.E_OK
}

// ChangeParameter implements change_parameter (spec.md §4.D, extended
// per SPEC_FULL.md to reserve every parameter besides TCP_KEEPALIVE).
func (e *Engine) ChangeParameter(id types.SocketID, param types.Param, value int) types.Result {
	slot := e.table.Get(id)
	if slot == nil || slot.State == types.StateUnused {
		e.report(types.ApiChangeParameter, types.ErrParamPointer)
		return types.E_NOT_OK
	}
	switch param {
	case types.ParamTCPKeepAlive:
		ok, _ := oscall.SetKeepAlive(slot.FD, value != 0)
		return types.ResultOf(ok)
	default:
		e.report(types.ApiChangeParameter, types.ErrInvArg)
		return types.E_NOT_OK
	}
}

// ForceUnused is used by request_com_mode(OFFLINE) to mass-shutdown
// every live slot (spec.md §4.D). It returns the ids that were closed
// with a non-OK result, for the caller to aggregate into one error.
func (e *Engine) ForceUnused() (failed []types.SocketID) {
	var live []types.SocketID
	e.table.Each(func(id types.SocketID, _ *socktab.Slot) {
		live = append(live, id)
	})
	for _, id := range live {
		if e.Close(id, true) != types.E_OK {
			failed = append(failed, id)
		}
	}
	return failed
}
