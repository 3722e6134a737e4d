//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks all interrupts, including the uptime tick, and
// returns the previous mask
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the mask saved by disableInterrupts
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
