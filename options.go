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

import (
	"go.uber.org/zap"

	"github.com/govoltron/tcpip/internal/types"
)

// Config holds everything Init needs. The configuration loader itself
// is out of scope (spec.md §1): Init starts from defaultConfig and
// applies the Option functions the hosting process passes to it; a
// Config is never read from a file by this package.
type Config struct {
	// MaxSockets is the fixed capacity of the socket table.
	MaxSockets int
	// MaxControllers is the fixed number of commandable Ethernet
	// controllers.
	MaxControllers int
	// MaxPacketSize sizes the receive scratch buffer and every slot's
	// tx_buffer. Defaults to DefaultMaxPacketSize.
	MaxPacketSize int
	// InstanceID is reported on every ReportError call.
	InstanceID uint8

	Adapter  SocketAdapter
	Reporter ErrorReporter
	Logger   *zap.Logger
	// LogFile, if set and Logger is nil, makes Init build a
	// lumberjack-backed rotating file logger (see logger.go).
	LogFile string
}

// Option mutates a Config before Init builds a Module, mirroring the
// functional-options pattern the teacher repository uses for
// VoltronOption.
type Option func(cfg *Config)

// WithSocketAdapter sets the upper-layer callback consumer. Required.
func WithSocketAdapter(a SocketAdapter) Option {
	return func(cfg *Config) { cfg.Adapter = a }
}

// WithErrorReporter sets the best-effort development-error sink.
func WithErrorReporter(r ErrorReporter) Option {
	return func(cfg *Config) { cfg.Reporter = r }
}

// WithLogger overrides the default no-op zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *Config) { cfg.Logger = l }
}

// WithLogFile enables a rotating file-backed logger (via lumberjack)
// when no explicit Logger is supplied.
func WithLogFile(path string) Option {
	return func(cfg *Config) { cfg.LogFile = path }
}

// WithMaxSockets overrides the default socket-table capacity.
func WithMaxSockets(n int) Option {
	return func(cfg *Config) { cfg.MaxSockets = n }
}

// WithMaxPacketSize overrides DefaultMaxPacketSize.
func WithMaxPacketSize(n int) Option {
	return func(cfg *Config) { cfg.MaxPacketSize = n }
}

// WithControllers sets the number of commandable Ethernet controllers.
func WithControllers(n int) Option {
	return func(cfg *Config) { cfg.MaxControllers = n }
}

func defaultConfig() Config {
	return Config{
		MaxSockets:     16,
		MaxControllers: 1,
		MaxPacketSize:  types.DefaultMaxPacketSize,
	}
}
