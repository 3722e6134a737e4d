package core

import "sync/atomic"

// Timebase configuration. The timer runs from HSI16 divided by 16, so one
// tick of the in-period counter is 1us and the auto-reload period is 1ms.
const (
	TimerFreq    = 1000000 // 1MHz tick frequency
	PeriodTicks  = 1000    // ticks per period (auto-reload = PeriodTicks-1)
	TickMicros   = 1       // microseconds per tick
	PeriodMicros = PeriodTicks * TickMicros
)

// uptimeMillis counts elapsed periods since the last Reset.
// Written only by HandleTick, read from the main context.
var uptimeMillis atomic.Uint32

// HandleTick is the body of the period-elapsed interrupt handler.
// It must run exactly once per hardware period and is not reentrant.
func HandleTick() {
	timerDriver.AckInterrupt()
	uptimeMillis.Add(1)
}

// Millis returns the number of elapsed periods (milliseconds) since the last
// Reset. It wraps after 2^32 periods, about 49.7 days.
func Millis() uint32 {
	return uptimeMillis.Load()
}

// Micros returns microseconds since the last Reset, wrapping modulo 2^32
// (about 71.6 minutes).
func Micros() uint32 {
	ms, ticks := Snapshot()
	return ms*PeriodMicros + ticks*TickMicros
}

// Uptime returns microseconds since the last Reset as a 64-bit value.
// It wraps only when the millisecond counter does.
func Uptime() uint64 {
	ms, ticks := Snapshot()
	return uint64(ms)*PeriodMicros + uint64(ticks)*TickMicros
}

// Snapshot returns a consistent (periods, ticks) pair.
//
// The counter and the hardware register cannot be read atomically together,
// so the counter is read on both sides of the register and the sample is
// retried if the interrupt ran in between. A period-elapsed flag that was
// already pending before the register was read means the register rolled
// over but the handler has not run yet (e.g. interrupts are masked); that
// period is accounted for here.
func Snapshot() (millis, ticks uint32) {
	t := MustTimer()
	for {
		ms := uptimeMillis.Load()
		pendingBefore := t.PeriodPending()
		cnt := t.Count()
		pendingAfter := t.PeriodPending()
		if uptimeMillis.Load() != ms || pendingAfter != pendingBefore {
			// Interrupt ran or the period rolled over mid-sample
			continue
		}
		if pendingBefore {
			ms++
		}
		return ms, cnt
	}
}
