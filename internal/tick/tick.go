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

// Package tick is the Tick Driver (spec.md §4.G): it builds the
// readiness-interest poll set from the socket table, performs exactly
// one non-blocking multiplex call, and dispatches every live slot to
// its per-state handler. It holds no state of its own between calls.
package tick

import (
	"golang.org/x/sys/unix"

	"github.com/govoltron/tcpip/internal/oscall"
	"github.com/govoltron/tcpip/internal/socktab"
	"github.com/govoltron/tcpip/internal/statemachine"
	"github.com/govoltron/tcpip/internal/types"
)

func pollEventsFor(interest types.Interest) int16 {
	var ev int16
	if interest&types.InterestReadable != 0 {
		ev |= unix.POLLIN
	}
	if interest&types.InterestWritable != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func reventsOf(mask int16) statemachine.Revents {
	return statemachine.Revents{
		Readable: mask&unix.POLLIN != 0,
		Writable: mask&unix.POLLOUT != 0,
		HangUp:   mask&unix.POLLHUP != 0,
		Err:      mask&unix.POLLERR != 0,
	}
}

// MainFunction is the single public entry point of the Tick Driver
// (spec.md §6 main_function). It must be called periodically from the
// same execution context as every other public operation (spec.md §5).
func MainFunction(engine *statemachine.Engine) {
	table := engine.Table()

	type live struct {
		id   types.SocketID
		slot *socktab.Slot
	}
	var entries []live

	// Step 1: refresh the poll record for every live slot, reading the
	// handle fresh at the start of the tick since slots can be freed
	// between ticks (spec.md §9 "Ownership of OS handles").
	fds := make([]unix.PollFd, 0, table.Capacity())
	table.Each(func(id types.SocketID, slot *socktab.Slot) {
		if slot.FD == oscall.Invalid {
			return
		}
		entries = append(entries, live{id: id, slot: slot})
		fds = append(fds, unix.PollFd{
			Fd:     int32(slot.FD),
			Events: pollEventsFor(slot.Interest),
		})
	})

	if len(fds) == 0 {
		return
	}

	// Step 2: one non-blocking multiplex call.
	oscall.Poll(fds, 0)

	// Step 3: dispatch every slot regardless of the poll's aggregate
	// return value; each per-state handler inspects its own revents.
	for i, e := range entries {
		rev := reventsOf(fds[i].Revents)
		engine.Dispatch(e.id, e.slot, rev)
	}
}
