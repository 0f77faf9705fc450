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

// Package tcpip implements a TCP/IP transport adaptation layer
// conforming to the AUTOSAR TcpIp service contract: a fixed-size pool
// of pre-allocated socket handles, lifecycle operations over them, and
// a single periodic tick function that drives all asynchronous
// progress. Upper-layer notifications are delivered through the
// SocketAdapter callbacks supplied at Init.
//
// A Module is the single process-wide instance; there is no package
// level state. All public methods, including MainFunction, must be
// called from the same execution context, or the caller must provide
// external mutual exclusion.
package tcpip
