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
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/govoltron/tcpip/internal/types"
)

// RequestComMode implements request_com_mode (spec.md §4.D). ComMode
// only has three named members (Offline/Online/OnHold); Startup and
// Shutdown are distinct ControllerState values with no ComMode
// counterpart (spec.md §3 "Only online/onhold/offline are externally
// commandable"). Any other ComMode value, which a caller can only
// produce by converting an integer, makes RequestComMode panic.
//
// OFFLINE forces every live slot to UNUSED. Each per-slot close is
// attempted independently and every failure is aggregated with
// multierr rather than stopping at the first one, so a single wedged
// descriptor cannot mask the rest of the mass shutdown.
func (m *Module) RequestComMode(ctrlID uint8, mode ComMode) Result {
	if int(ctrlID) >= len(m.controllers) {
		return E_NOT_OK
	}

	switch mode {
	case types.ComModeOffline:
		m.controllers[ctrlID] = types.ControllerOffline
		failed := m.engine.ForceUnused()
		if len(failed) == 0 {
			return E_OK
		}
		var errs error
		for _, id := range failed {
			errs = multierr.Append(errs, fmt.Errorf("slot %d: close failed", id))
		}
		m.log.Warn("request_com_mode(OFFLINE): some slots failed to close",
			zap.Uint8("controller", ctrlID), zap.Error(errs))
		return E_NOT_OK

	case types.ComModeOnline:
		m.controllers[ctrlID] = types.ControllerOnline
		return E_OK

	case types.ComModeOnHold:
		m.controllers[ctrlID] = types.ControllerOnHold
		return E_OK

	default:
		panic("tcpip: unreachable com mode")
	}
}

// ControllerMode reports the current commandable state of a
// controller, translating the internal Startup/Shutdown states (never
// externally reachable here since Init never leaves a controller in
// either) down to the three-member ComMode space.
func (m *Module) ControllerMode(ctrlID uint8) (mode ComMode, ok bool) {
	if int(ctrlID) >= len(m.controllers) {
		return 0, false
	}
	switch m.controllers[ctrlID] {
	case types.ControllerOnline:
		return types.ComModeOnline, true
	case types.ControllerOnHold:
		return types.ComModeOnHold, true
	default:
		return types.ComModeOffline, true
	}
}
