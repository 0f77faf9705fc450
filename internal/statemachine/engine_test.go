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
	"testing"

	"github.com/govoltron/tcpip/internal/types"
)

// recordingAdapter implements types.SocketAdapter and records every
// callback invocation for assertions.
type recordingAdapter struct {
	connected []types.SocketID
	events    []recordedEvent
	accepted  []acceptedCall
}

type recordedEvent struct {
	id    types.SocketID
	event types.Event
}

type acceptedCall struct {
	listenID, newID types.SocketID
	remote          types.Addr
}

func (r *recordingAdapter) TcpConnected(id types.SocketID) {
	r.connected = append(r.connected, id)
}

func (r *recordingAdapter) TcpAccepted(listenID, newID types.SocketID, remote types.Addr) bool {
	r.accepted = append(r.accepted, acceptedCall{listenID, newID, remote})
	return true
}

func (r *recordingAdapter) RxIndication(id types.SocketID, remote types.Addr, data []byte) {}

func (r *recordingAdapter) TcpIpEvent(id types.SocketID, event types.Event) {
	r.events = append(r.events, recordedEvent{id, event})
}

func (r *recordingAdapter) CopyTxData(id types.SocketID, dst []byte) (int, types.CopyTxResult) {
	return 0, types.CopyTxNotOK
}

func newTestEngine(t *testing.T) (*Engine, *recordingAdapter) {
	t.Helper()
	a := &recordingAdapter{}
	return New(Config{Capacity: 8, MaxPacketSize: 256, Adapter: a}), a
}

// recordingReporter implements types.ErrorReporter and records every
// ReportError call for assertions.
type recordingReporter struct {
	reports []reportedError
}

type reportedError struct {
	api types.ApiID
	err types.DevError
}

func (r *recordingReporter) ReportError(moduleID uint16, instanceID uint8, apiID types.ApiID, errorID types.DevError) {
	r.reports = append(r.reports, reportedError{apiID, errorID})
}

func newTestEngineWithReporter(t *testing.T) (*Engine, *recordingAdapter, *recordingReporter) {
	t.Helper()
	a := &recordingAdapter{}
	r := &recordingReporter{}
	return New(Config{Capacity: 2, MaxPacketSize: 256, Adapter: a, Reporter: r}), a, r
}

func TestInterestForTable(t *testing.T) {
	cases := []struct {
		state types.State
		want  types.Interest
	}{
		{types.StateUnused, types.InterestNone},
		{types.StateAllocated, types.InterestNone},
		{types.StateBound, types.InterestReadable},
		{types.StateListen, types.InterestReadable},
		{types.StateConnecting, types.InterestWritable},
		{types.StateConnected, types.InterestReadable},
		{types.StateShutdown, types.InterestReadable},
		{types.StateFinished, types.InterestReadable},
	}
	for _, c := range cases {
		if got := interestFor(c.state); got != c.want {
			t.Errorf("interestFor(%v) = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestEmissionForTable(t *testing.T) {
	cases := []struct {
		from, to types.State
		protocol types.Protocol
		wantEv   types.Event
		wantEmit bool
	}{
		{types.StateConnected, types.StateFinished, types.ProtocolTCP, types.EventTCPFinReceived, true},
		{types.StateShutdown, types.StateFinished, types.ProtocolTCP, types.EventTCPFinReceived, true},
		{types.StateConnected, types.StateUnused, types.ProtocolTCP, types.EventTCPReset, true},
		{types.StateShutdown, types.StateUnused, types.ProtocolTCP, types.EventTCPClosed, true},
		{types.StateAllocated, types.StateUnused, types.ProtocolTCP, types.EventTCPClosed, true},
		{types.StateListen, types.StateUnused, types.ProtocolTCP, types.EventTCPClosed, true},
		{types.StateBound, types.StateUnused, types.ProtocolUDP, types.EventUDPClosed, true},
		{types.StateAllocated, types.StateBound, types.ProtocolTCP, 0, false},
		{types.StateConnecting, types.StateConnected, types.ProtocolTCP, 0, false},
	}
	for _, c := range cases {
		ev, emit := emissionFor(c.from, c.to, c.protocol)
		if emit != c.wantEmit || (emit && ev != c.wantEv) {
			t.Errorf("emissionFor(%v, %v, %v) = (%v, %v), want (%v, %v)",
				c.from, c.to, c.protocol, ev, emit, c.wantEv, c.wantEmit)
		}
	}
}

func TestAllocateExhaustion(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := 0; i < 8; i++ {
		if _, res := e.Allocate(types.DomainIPv4, types.ProtocolUDP); res != types.E_OK {
			t.Fatalf("allocate %d: want E_OK", i)
		}
	}
	if _, res := e.Allocate(types.DomainIPv4, types.ProtocolUDP); res != types.E_NOT_OK {
		t.Fatalf("allocate past capacity: want E_NOT_OK, got %v", res)
	}
}

// TestUDPBindRoundTrip is spec.md §8 scenario 1.
func TestUDPBindRoundTrip(t *testing.T) {
	e, a := newTestEngine(t)

	id, res := e.Allocate(types.DomainIPv4, types.ProtocolUDP)
	if res != types.E_OK || id != 0 {
		t.Fatalf("allocate: id=%d res=%v", id, res)
	}

	port := uint16(types.PortAny)
	if res := e.Bind(id, types.LocalAddrIDAny, &port); res != types.E_OK {
		t.Fatalf("bind: %v", res)
	}
	if port == 0 {
		t.Fatalf("expected an OS-assigned port, got 0")
	}

	if res := e.Close(id, true); res != types.E_OK {
		t.Fatalf("close: %v", res)
	}
	if len(a.events) != 1 || a.events[0].event != types.EventUDPClosed {
		t.Fatalf("events = %+v, want exactly one UDP_CLOSED", a.events)
	}
}

// TestTCPAbortFromAllocated is spec.md §8 scenario 2.
func TestTCPAbortFromAllocated(t *testing.T) {
	e, a := newTestEngine(t)

	id, res := e.Allocate(types.DomainIPv4, types.ProtocolTCP)
	if res != types.E_OK {
		t.Fatalf("allocate: %v", res)
	}
	if res := e.Close(id, true); res != types.E_OK {
		t.Fatalf("close: %v", res)
	}
	if len(a.events) != 1 || a.events[0].event != types.EventTCPClosed {
		t.Fatalf("events = %+v, want exactly one TCP_CLOSED (never TCP_RESET)", a.events)
	}
}

// TestCloseIdempotentOnUnused covers §8 "close(id, abort=true) ... is
// idempotent on an already-unused slot" (spec.md §5).
func TestCloseIdempotentOnUnused(t *testing.T) {
	e, a := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolTCP)
	e.Close(id, true)
	a.events = nil

	if res := e.Close(id, true); res != types.E_OK {
		t.Fatalf("second close: %v", res)
	}
	if len(a.events) != 0 {
		t.Fatalf("expected no further events on an already-UNUSED slot, got %+v", a.events)
	}
}

func TestTcpConnectRejectsUDPSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolUDP)

	remote := types.Addr{Domain: types.DomainIPv4, Port: 1, Addr4: [4]byte{127, 0, 0, 1}}
	if res := e.TcpConnect(id, remote); res != types.E_NOT_OK {
		t.Fatalf("tcp_connect on a UDP slot: want E_NOT_OK, got %v", res)
	}
}

// TestBindRejectsNonAllocatedSlot covers spec.md §3: bind only ever
// transitions ALLOCATED -> BOUND, so a LISTEN slot must not be
// re-bound.
func TestBindRejectsNonAllocatedSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolTCP)
	var port uint16
	if res := e.Bind(id, types.LocalAddrIDAny, &port); res != types.E_OK {
		t.Fatalf("first bind: %v", res)
	}
	if res := e.TcpListen(id, 10); res != types.E_OK {
		t.Fatalf("listen: %v", res)
	}
	if res := e.Bind(id, types.LocalAddrIDAny, &port); res != types.E_NOT_OK {
		t.Fatalf("re-bind of a LISTEN slot: want E_NOT_OK, got %v", res)
	}
}

// TestLocalAddrAfterBind covers the original_source supplement's
// LocalAddr accessor.
func TestLocalAddrAfterBind(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolUDP)
	port := uint16(types.PortAny)
	if res := e.Bind(id, types.LocalAddrIDAny, &port); res != types.E_OK {
		t.Fatalf("bind: %v", res)
	}
	a, ok := e.LocalAddr(id)
	if !ok {
		t.Fatalf("LocalAddr: want ok, got false")
	}
	if a.Port != port {
		t.Fatalf("LocalAddr port = %d, want %d", a.Port, port)
	}
}

func TestLocalAddrOnUnusedSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, ok := e.LocalAddr(0); ok {
		t.Fatalf("LocalAddr on an UNUSED slot: want ok=false")
	}
}

func TestTcpReceivedAck(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolTCP)
	if res := e.TcpReceived(id, 128); res != types.E_OK {
		t.Fatalf("tcp_received: %v", res)
	}
}

func TestTcpReceivedRejectsUDPSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolUDP)
	if res := e.TcpReceived(id, 128); res != types.E_NOT_OK {
		t.Fatalf("tcp_received on a UDP slot: want E_NOT_OK, got %v", res)
	}
}

// TestAllocateExhaustionReportsNoBufs covers spec.md §7: exhausting the
// table is a resource error, not a bad-argument error.
func TestAllocateExhaustionReportsNoBufs(t *testing.T) {
	e, _, r := newTestEngineWithReporter(t)
	e.Allocate(types.DomainIPv4, types.ProtocolUDP)
	e.Allocate(types.DomainIPv4, types.ProtocolUDP)

	if _, res := e.Allocate(types.DomainIPv4, types.ProtocolUDP); res != types.E_NOT_OK {
		t.Fatalf("allocate past capacity: want E_NOT_OK, got %v", res)
	}
	if len(r.reports) != 1 || r.reports[0].api != types.ApiGetSocket || r.reports[0].err != types.ErrNoBufS {
		t.Fatalf("reports = %+v, want exactly one ApiGetSocket/ErrNoBufS", r.reports)
	}
}

func TestUdpTransmitOversizePullRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.Allocate(types.DomainIPv4, types.ProtocolUDP)
	var port uint16
	e.Bind(id, types.LocalAddrIDAny, &port)

	remote := types.Addr{Domain: types.DomainIPv4, Port: 1, Addr4: [4]byte{127, 0, 0, 1}}
	res := e.UdpTransmit(id, nil, remote, 1<<20)
	if res != types.E_NOT_OK {
		t.Fatalf("expected E_NOT_OK for an oversize pull, got %v", res)
	}
}
