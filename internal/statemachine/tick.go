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

package statemachine

import (
	"golang.org/x/sys/unix"

	"github.com/govoltron/tcpip/internal/addr"
	"github.com/govoltron/tcpip/internal/oscall"
	"github.com/govoltron/tcpip/internal/socktab"
	"github.com/govoltron/tcpip/internal/types"
)

// Revents is the readiness result the tick driver observed for one
// slot's descriptor in the last poll call.
type Revents struct {
	Readable bool
	Writable bool
	HangUp   bool
	Err      bool
}

// Dispatch runs the per-state tick handler for slot (spec.md §4.D "Tick
// handler per state"). It is called once per slot per tick, regardless
// of the poll's aggregate return value.
func (e *Engine) Dispatch(id types.SocketID, slot *socktab.Slot, rev Revents) {
	switch slot.State {
	case types.StateConnecting:
		e.tickConnecting(id, slot, rev)
	case types.StateListen:
		e.tickListen(id, slot, rev)
	case types.StateConnected, types.StateBound:
		e.tickReadable(id, slot, rev)
	case types.StateShutdown:
		e.tickShutdown(id, slot, rev)
	case types.StateUnused, types.StateAllocated, types.StateFinished:
		// no-op per tick (spec.md §4.D)
	default:
		panic("statemachine: unreachable state in Dispatch")
	}
}

func (e *Engine) tickConnecting(id types.SocketID, slot *socktab.Slot, rev Revents) {
	if rev.HangUp || rev.Err {
		e.enter(id, slot, types.StateUnused)
		return
	}
	if rev.Writable {
		_, ok, _ := oscall.Getpeername(slot.FD)
		if ok {
			e.enter(id, slot, types.StateConnected)
		} else {
			e.enter(id, slot, types.StateAllocated)
		}
	}
}

func (e *Engine) tickListen(id types.SocketID, slot *socktab.Slot, rev Revents) {
	if rev.HangUp || rev.Err {
		e.enter(id, slot, types.StateUnused)
		return
	}
	if rev.Readable {
		e.accept(id, slot)
	}
}

// tickReadable is shared by CONNECTED and BOUND (spec.md §4.D: "BOUND
// (UDP only meaningful): same as CONNECTED for read path").
func (e *Engine) tickReadable(id types.SocketID, slot *socktab.Slot, rev Revents) {
	if rev.Err {
		e.enter(id, slot, types.StateUnused)
		return
	}
	if rev.Readable || rev.HangUp {
		e.receive(id, slot)
	}
}

func (e *Engine) tickShutdown(id types.SocketID, slot *socktab.Slot, rev Revents) {
	if rev.Err {
		e.enter(id, slot, types.StateUnused)
		return
	}
	if rev.Readable || rev.HangUp {
		e.receive(id, slot)
	}
}

// accept implements the LISTEN accept path (spec.md §4.D).
func (e *Engine) accept(listenID types.SocketID, listenSlot *socktab.Slot) {
	newFD, sa, ok, _ := oscall.Accept4(listenSlot.FD)
	if !ok {
		return
	}

	newID, ok := e.table.FindFree()
	if !ok {
		oscall.Close(newFD)
		return
	}
	newSlot := e.table.Get(newID)
	newSlot.Domain = listenSlot.Domain
	newSlot.Protocol = listenSlot.Protocol
	newSlot.FD = newFD

	remote, err := addr.FromOS(sa)
	if err != nil {
		oscall.Close(newFD)
		newSlot.FD = oscall.Invalid
		return
	}

	if !e.adapter.TcpAccepted(listenID, newID, remote) {
		oscall.Close(newFD)
		newSlot.FD = oscall.Invalid
		return
	}

	e.enter(newID, newSlot, types.StateConnected)
}

// receive implements the shared receive step (spec.md §4.D "Receive
// step"). It resolves the EAGAIN/EWOULDBLOCK disjunction explicitly
// (SPEC_FULL.md Open Question #2), unlike the source's always-false
// conjunction.
func (e *Engine) receive(id types.SocketID, slot *socktab.Slot) {
	n, sa, ok, errno := oscall.RecvFrom(slot.FD, e.rxBuf)
	if !ok {
		if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
			return
		}
		e.enter(id, slot, types.StateUnused)
		return
	}

	if n == 0 && slot.Protocol == types.ProtocolTCP {
		if slot.State == types.StateShutdown {
			e.enter(id, slot, types.StateUnused)
		} else {
			e.enter(id, slot, types.StateFinished)
		}
		return
	}

	var remote types.Addr
	if sa != nil {
		remote, _ = addr.FromOS(sa)
	} else {
		peerSA, ok, _ := oscall.Getpeername(slot.FD)
		if ok {
			remote, _ = addr.FromOS(peerSA)
		}
	}
	e.adapter.RxIndication(id, remote, e.rxBuf[:n])
}
