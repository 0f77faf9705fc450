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

import "github.com/govoltron/tcpip/internal/types"

// Public aliases of the data model in internal/types, so that callers
// never need to import an internal package to use this one.
type (
	Domain        = types.Domain
	Protocol      = types.Protocol
	SocketID      = types.SocketID
	Addr          = types.Addr
	Result        = types.Result
	Event         = types.Event
	CopyTxResult  = types.CopyTxResult
	ComMode       = types.ComMode
	Param         = types.Param
	SocketAdapter = types.SocketAdapter
	ErrorReporter = types.ErrorReporter
	DevError      = types.DevError
	ApiID         = types.ApiID
)

const (
	DomainIPv4 = types.DomainIPv4
	DomainIPv6 = types.DomainIPv6

	ProtocolTCP = types.ProtocolTCP
	ProtocolUDP = types.ProtocolUDP

	E_OK     = types.E_OK
	E_NOT_OK = types.E_NOT_OK

	UDPClosed      = types.EventUDPClosed
	TCPClosed      = types.EventTCPClosed
	TCPReset       = types.EventTCPReset
	TCPFinReceived = types.EventTCPFinReceived

	CopyTxOK    = types.CopyTxOK
	CopyTxBusy  = types.CopyTxBusy
	CopyTxNotOK = types.CopyTxNotOK
	CopyTxOvfl  = types.CopyTxOvfl

	ComModeOffline = types.ComModeOffline
	ComModeOnline  = types.ComModeOnline
	ComModeOnHold  = types.ComModeOnHold

	ParamTCPKeepAlive = types.ParamTCPKeepAlive

	InvalidSocketID      = types.InvalidSocketID
	PortAny              = types.PortAny
	LocalAddrIDAny       = types.LocalAddrIDAny
	DefaultMaxPacketSize = types.DefaultMaxPacketSize
)
