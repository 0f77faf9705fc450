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

package tcpip

// GetSocket implements get_socket (spec.md §4.C allocate).
func (m *Module) GetSocket(domain Domain, protocol Protocol) (SocketID, Result) {
	return m.engine.Allocate(domain, protocol)
}

// Bind implements bind (spec.md §4.D). port is both an in and an out
// parameter: pass PortAny to let the OS choose, and read back the
// bound port on E_OK.
func (m *Module) Bind(id SocketID, localAddrID uint8, port *uint16) Result {
	return m.engine.Bind(id, localAddrID, port)
}

// TcpListen implements tcp_listen (spec.md §4.D).
func (m *Module) TcpListen(id SocketID, channels int) Result {
	return m.engine.TcpListen(id, channels)
}

// TcpConnect implements tcp_connect (spec.md §4.D).
func (m *Module) TcpConnect(id SocketID, remote Addr) Result {
	return m.engine.TcpConnect(id, remote)
}

// LocalAddr reads back the local address and port the OS assigned to
// id after a successful Bind or TcpConnect (SPEC_FULL.md
// original_source supplement, generalizing TcpIp_GetIpAddr /
// TcpIp_GetPhysAddr). ok is false if id is not a live slot.
func (m *Module) LocalAddr(id SocketID) (addr Addr, ok bool) {
	return m.engine.LocalAddr(id)
}

// TcpReceived implements tcp_received (spec.md §6): the upper layer
// acknowledges consumption of length bytes from a prior RxIndication.
func (m *Module) TcpReceived(id SocketID, length uint32) Result {
	return m.engine.TcpReceived(id, length)
}

// UdpTransmit implements udp_transmit (spec.md §4.D). Pass data == nil
// to pull length bytes from the adapter's CopyTxData instead of
// supplying them directly.
func (m *Module) UdpTransmit(id SocketID, data []byte, remote Addr, length int) Result {
	return m.engine.UdpTransmit(id, data, remote, length)
}

// TcpTransmit implements tcp_transmit (spec.md §4.D). Pass data == nil
// to pull from the adapter's CopyTxData instead of supplying it
// directly.
func (m *Module) TcpTransmit(id SocketID, data []byte, available int, force bool) Result {
	return m.engine.TcpTransmit(id, data, available, force)
}

// Close implements close (spec.md §4.D).
func (m *Module) Close(id SocketID, abort bool) Result {
	return m.engine.Close(id, abort)
}

// ChangeParameter implements change_parameter (spec.md §4.D).
func (m *Module) ChangeParameter(id SocketID, param Param, value int) Result {
	return m.engine.ChangeParameter(id, param, value)
}
