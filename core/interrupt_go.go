//go:build !tinygo

package core

// State stands in for the saved interrupt mask on hosted Go builds
type State uintptr

// disableInterrupts has nothing to mask when the timer is simulated; the
// simulated interrupt only fires from the goroutine that advances the model.
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on hosted Go
func restoreInterrupts(state State) {}
