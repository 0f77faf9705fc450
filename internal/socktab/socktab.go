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

// Package socktab is the Socket Table (spec.md §4.C): a fixed-capacity
// array of socket slots whose index is the external, stable handle for
// the lifetime of whatever occupies it (spec.md §3 invariant 3). This
// package owns only storage and linear-scan allocation; every bit of
// transition logic lives in internal/statemachine.
package socktab

import (
	"github.com/govoltron/tcpip/internal/oscall"
	"github.com/govoltron/tcpip/internal/types"
)

// Slot is one entry of the table (spec.md §3 "Socket slot").
type Slot struct {
	State    types.State
	Domain   types.Domain
	Protocol types.Protocol
	// FD is the OS descriptor, or oscall.Invalid when State == UNUSED
	// (spec.md §3 invariant 1).
	FD int
	// Interest is the readiness mask the state machine's entry function
	// set for the slot's current state; the tick driver reads it when it
	// builds the poll set (spec.md §3 "Readiness-interest record").
	Interest types.Interest
	// TxBuf is the pull-scratch buffer sized by MAX_PACKETSIZE
	// (spec.md §3).
	TxBuf []byte
}

func newSlot(maxPacketSize int) Slot {
	return Slot{
		State: types.StateUnused,
		FD:    oscall.Invalid,
		TxBuf: make([]byte, maxPacketSize),
	}
}

// Table is the fixed-size slot array. The backing array is allocated
// once at construction and never grown, so a Slot's index (its
// types.SocketID) never changes even as other slots are freed and
// reused.
type Table struct {
	slots         []Slot
	maxPacketSize int
}

// New allocates a table with capacity slots, all initially UNUSED
// (spec.md §3 "Lifecycle").
func New(capacity int, maxPacketSize int) *Table {
	t := &Table{
		slots:         make([]Slot, capacity),
		maxPacketSize: maxPacketSize,
	}
	for i := range t.slots {
		t.slots[i] = newSlot(maxPacketSize)
	}
	return t
}

// Capacity returns the fixed number of slots.
func (t *Table) Capacity() int { return len(t.slots) }

// Get returns a pointer to the slot for id, or nil if id is out of
// range. The pointer is stable for the table's lifetime.
func (t *Table) Get(id types.SocketID) *Slot {
	if int(id) < 0 || int(id) >= len(t.slots) {
		return nil
	}
	return &t.slots[id]
}

// FindFree performs the linear scan for an UNUSED slot required by
// spec.md §4.C allocate. It returns false if every slot is occupied.
func (t *Table) FindFree() (id types.SocketID, ok bool) {
	for i := range t.slots {
		if t.slots[i].State == types.StateUnused {
			return types.SocketID(i), true
		}
	}
	return types.InvalidSocketID, false
}

// Each calls fn for every slot currently in a live (non-UNUSED) state,
// in index order. Used by the tick driver to rebuild the poll set and
// by request_com_mode(OFFLINE) to mass-shutdown.
func (t *Table) Each(fn func(id types.SocketID, slot *Slot)) {
	for i := range t.slots {
		if t.slots[i].State != types.StateUnused {
			fn(types.SocketID(i), &t.slots[i])
		}
	}
}
