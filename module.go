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

	"github.com/govoltron/tcpip/internal/statemachine"
	"github.com/govoltron/tcpip/internal/tick"
	"github.com/govoltron/tcpip/internal/types"
)

// Module is the one process-wide instance of the transport adaptation
// layer (spec.md §9 "Global module state"): it owns the socket table,
// the controller table and the resolved configuration. There is no
// package-level state; a hosting process that needs more than one
// instance constructs more than one Module.
type Module struct {
	cfg         Config
	log         *zap.Logger
	engine      *statemachine.Engine
	controllers []types.ControllerState
}

// Init builds a Module. It is the Go equivalent of the design-level
// init(config) API in spec.md §6; re-invoking Init on a hosting process
// (by calling it again) simply produces a fresh, independent Module —
// there is nothing to tear down because no package-level state exists.
func Init(opts ...Option) *Module {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	log := buildLogger(cfg)

	engine := statemachine.New(statemachine.Config{
		Capacity:      cfg.MaxSockets,
		MaxPacketSize: cfg.MaxPacketSize,
		Adapter:       cfg.Adapter,
		Reporter:      cfg.Reporter,
		Logger:        log,
		InstanceID:    cfg.InstanceID,
	})

	controllers := make([]types.ControllerState, cfg.MaxControllers)
	for i := range controllers {
		// Controllers start offline; the hosting process brings them up
		// explicitly via RequestComMode(ONLINE), the same way a BswM
		// mode request does in the original AUTOSAR stack.
		controllers[i] = types.ControllerOffline
	}

	return &Module{
		cfg:         cfg,
		log:         log,
		engine:      engine,
		controllers: controllers,
	}
}

// MainFunction is the single entry point for asynchronous progress
// (spec.md §4.G, §6). It must be invoked periodically from the same
// execution context as every other Module method.
func (m *Module) MainFunction() {
	tick.MainFunction(m.engine)
}
