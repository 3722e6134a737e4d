package core

import (
	"errors"
	"sync/atomic"
)

// ClockState is the lifecycle state of the uptime clock
type ClockState uint32

const (
	StateUninitialized ClockState = iota
	StateRunning
	StateSuspended
)

func (s ClockState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

var ErrOscillatorTimeout = errors.New("oscillator not ready")

var clockState atomic.Uint32

// CurrentState returns the lifecycle state of the uptime clock
func CurrentState() ClockState {
	return ClockState(clockState.Load())
}

func setState(s ClockState) {
	clockState.Store(uint32(s))
}

// Init resets the timer, brings up its oscillator and starts counting from
// zero with the period interrupt armed.
// The oscillator wait has no timeout: if it never becomes ready, Init never
// returns. Use InitTimeout for a bounded wait.
// Calling Init again re-runs the whole sequence.
func Init() {
	_ = initClock(0)
}

// InitTimeout is Init with the oscillator wait bounded to maxPolls readiness
// polls. On timeout it returns ErrOscillatorTimeout and the clock stays
// uninitialized. A maxPolls of 0 waits forever.
func InitTimeout(maxPolls uint32) error {
	return initClock(maxPolls)
}

func initClock(maxPolls uint32) error {
	t := MustTimer()

	// Full peripheral reset first, leaving the timer unprogrammed
	setState(StateUninitialized)
	Reset()

	if !t.OscillatorReady() {
		t.EnableOscillator()
		polls := uint32(0)
		for !t.OscillatorReady() {
			polls++
			if maxPolls != 0 && polls >= maxPolls {
				RecordEvent(EvtOscTimeout, polls)
				DebugPrintln("[UPTIME] oscillator timeout after " + utoa(polls) + " polls")
				return ErrOscillatorTimeout
			}
		}
	}

	t.ClockGate(true)
	t.Configure()
	setState(StateRunning)
	t.EnableIRQ()

	RecordEvent(EvtInit, 0)
	DebugPrintln("[UPTIME] init")
	return nil
}

// DeInit disables the interrupt, ungates the timer clock and resets the
// counter. Time queries and delays are undefined until the next Init.
func DeInit() {
	t := MustTimer()
	t.DisableIRQ()
	t.ClockGate(false)
	setState(StateUninitialized)
	Reset()

	RecordEvent(EvtDeInit, 0)
	DebugPrintln("[UPTIME] deinit")
}

// Reset zeroes the uptime counter and hardware-resets the timer, which also
// clears the in-period counter and pending flags. The lifecycle state is
// kept: a running clock restarts from zero, a suspended one stays frozen at zero.
func Reset() {
	t := MustTimer()
	prev := uptimeMillis.Load()

	state := disableInterrupts()
	uptimeMillis.Store(0)
	t.PulseReset()
	// The peripheral reset wipes the configuration as well
	switch CurrentState() {
	case StateRunning:
		t.Configure()
	case StateSuspended:
		t.Configure()
		t.SetCounting(false)
	}
	restoreInterrupts(state)

	RecordEvent(EvtReset, prev)
}

// Suspend freezes the timebase. Counter and in-period register keep their
// values and no further period interrupts fire. It has no effect unless the
// clock is running.
//
// A DelayMs or DelayUs in progress on another context will not return while
// the clock is suspended.
func Suspend() {
	if CurrentState() != StateRunning {
		return
	}
	MustTimer().SetCounting(false)
	setState(StateSuspended)

	RecordEvent(EvtSuspend, uptimeMillis.Load())
	DebugPrintln("[UPTIME] suspend at " + utoa(uptimeMillis.Load()) + "ms")
}

// Resume continues a suspended timebase from its frozen value. The hardware
// count restarts from its retained value, so up to one tick may be lost.
// It has no effect unless the clock is suspended.
func Resume() {
	if CurrentState() != StateSuspended {
		return
	}
	t := MustTimer()
	t.SetCounting(true)
	t.StartCount()
	setState(StateRunning)

	RecordEvent(EvtResume, uptimeMillis.Load())
	DebugPrintln("[UPTIME] resume at " + utoa(uptimeMillis.Load()) + "ms")
}
