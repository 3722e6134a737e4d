package core

// UptimeTimer is the abstract low-power timer interface that the uptime clock uses.
// Target-specific code implements it on top of the real peripheral registers;
// the clock never touches registers directly.
//
// The timer is expected to be programmed so that one tick of the in-period
// counter is one microsecond and one full period (PeriodTicks ticks) is one
// millisecond.
type UptimeTimer interface {
	// EnableOscillator switches on the timer's clock source. It does not wait.
	EnableOscillator()

	// OscillatorReady reports whether the clock source is stable.
	OscillatorReady() bool

	// ClockGate selects the timer's kernel clock and enables (or disables)
	// the peripheral bus clock.
	ClockGate(enabled bool)

	// PulseReset asserts and releases the peripheral reset line.
	// This clears the in-period counter, all configuration and pending flags.
	PulseReset()

	// Configure programs divider, period and period-elapsed interrupt,
	// enables the timer and starts continuous counting.
	Configure()

	// SetCounting sets or clears the count-enable bit.
	SetCounting(enabled bool)

	// StartCount triggers a continuous count start.
	StartCount()

	// Count returns the free-running in-period counter, 0..PeriodTicks-1.
	Count() uint32

	// PeriodPending reports whether a period-elapsed flag is set but not yet
	// acknowledged by the interrupt handler.
	PeriodPending() bool

	// AckInterrupt clears the period-elapsed and compare-match flags.
	AckInterrupt()

	// EnableIRQ and DisableIRQ control the timer line at the interrupt controller.
	EnableIRQ()
	DisableIRQ()
}

// Global singleton used by core code.
var timerDriver UptimeTimer

// SetTimerDriver is called by target-specific code to register its driver.
func SetTimerDriver(d UptimeTimer) {
	timerDriver = d
}

// MustTimer returns the configured driver or panics if missing.
func MustTimer() UptimeTimer {
	if timerDriver == nil {
		panic("uptime timer driver not configured")
	}
	return timerDriver
}
