// Package sim is a software model of the low-power timer used by the uptime
// clock. It implements core.UptimeTimer so the clock can run on hosted Go:
// unit tests drive it tick by tick, and the host tool uses it to stand in for
// a real MCU.
package sim

import "sync"

// DefaultPeriod matches the hardware configuration: 1000 ticks of 1us each.
const DefaultPeriod = 1000

// Timer models an STM32 LPTIM with its oscillator, bus clock gate and NVIC line.
//
// A period-elapsed interrupt is delivered by calling the handler installed
// with SetHandler, synchronously from whichever goroutine advanced the model.
// The handler is called without the model's lock held, so it may call back
// into the Timer (AckInterrupt, Count).
type Timer struct {
	mu sync.Mutex

	period  uint32
	handler func()

	// polls after EnableOscillator until ready, negative for never
	oscReadyPolls int
	oscOn         bool
	oscPolls      int

	gated      bool
	configured bool
	enabled    bool
	started    bool
	ier        bool // period-elapsed interrupt enable at the peripheral
	nvic       bool // line enabled at the interrupt controller
	masked     bool // global interrupt mask

	cnt     uint32
	pending bool

	autoStep   uint32
	beforeRead func()

	// statistics
	reads      int
	resets     int
	configures int
	acks       int
}

// NewTimer returns a powered-off timer with the default 1ms period and an
// oscillator that is already running.
func NewTimer() *Timer {
	return &Timer{
		period: DefaultPeriod,
		oscOn:  true,
	}
}

// SetHandler installs the period-elapsed interrupt handler.
func (t *Timer) SetHandler(h func()) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// SetOscillator powers the oscillator on or off. When switched on by
// EnableOscillator it takes readyPolls polls to report ready; a negative
// readyPolls means it never does.
func (t *Timer) SetOscillator(on bool, readyPolls int) {
	t.mu.Lock()
	t.oscOn = on
	t.oscReadyPolls = readyPolls
	t.oscPolls = 0
	t.mu.Unlock()
}

// SetAutoStep makes every Count read advance the model by n ticks after the
// register has been sampled, like a free-running clock observed by a
// polling loop. Zero disables it.
func (t *Timer) SetAutoStep(n uint32) {
	t.mu.Lock()
	t.autoStep = n
	t.mu.Unlock()
}

// SetBeforeRead installs a hook run at the start of every Count read,
// before the register is sampled. Tests use it to inject an interrupt at
// the worst possible moment.
func (t *Timer) SetBeforeRead(hook func()) {
	t.mu.Lock()
	t.beforeRead = hook
	t.mu.Unlock()
}

// SetCount positions the in-period counter without running any interrupt.
func (t *Timer) SetCount(v uint32) {
	t.mu.Lock()
	t.cnt = v % t.period
	t.mu.Unlock()
}

// Mask and Unmask model a global interrupt mask (a critical section).
// Periods that elapse while masked leave the pending flag set; the
// interrupt is delivered on Unmask.
func (t *Timer) Mask() {
	t.mu.Lock()
	t.masked = true
	t.mu.Unlock()
}

func (t *Timer) Unmask() {
	t.mu.Lock()
	t.masked = false
	fire := t.deliverableLocked()
	h := t.handler
	t.mu.Unlock()
	if fire && h != nil {
		h()
	}
}

// Advance runs the counter forward by ticks, delivering one interrupt for
// every period rollover that happens while the interrupt is deliverable.
// Nothing happens while the timer is not counting.
func (t *Timer) Advance(ticks uint64) {
	for ticks > 0 {
		t.mu.Lock()
		fire := false
		for ticks > 0 && !fire {
			if !t.countingLocked() {
				ticks = 0
				break
			}
			ticks--
			t.cnt++
			if t.cnt >= t.period {
				t.cnt = 0
				t.pending = true
				fire = t.deliverableLocked()
			}
		}
		h := t.handler
		t.mu.Unlock()

		if fire && h != nil {
			h()
		}
	}
}

// Elapse advances the model by whole periods.
func (t *Timer) Elapse(periods uint32) {
	t.Advance(uint64(periods) * uint64(t.period))
}

func (t *Timer) countingLocked() bool {
	return t.oscOn && t.oscReadyLocked() && t.gated && t.configured && t.enabled && t.started
}

func (t *Timer) deliverableLocked() bool {
	return t.pending && t.ier && t.nvic && !t.masked
}

func (t *Timer) oscReadyLocked() bool {
	return t.oscOn && t.oscReadyPolls >= 0 && t.oscPolls >= t.oscReadyPolls
}

// EnableOscillator implements core.UptimeTimer.
func (t *Timer) EnableOscillator() {
	t.mu.Lock()
	if !t.oscOn {
		t.oscOn = true
		t.oscPolls = 0
	}
	t.mu.Unlock()
}

// OscillatorReady implements core.UptimeTimer.
func (t *Timer) OscillatorReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.oscOn {
		t.oscPolls++
	}
	return t.oscReadyLocked()
}

// ClockGate implements core.UptimeTimer.
func (t *Timer) ClockGate(enabled bool) {
	t.mu.Lock()
	t.gated = enabled
	t.mu.Unlock()
}

// PulseReset implements core.UptimeTimer. Like the RCC reset line it returns
// every peripheral register to its reset value.
func (t *Timer) PulseReset() {
	t.mu.Lock()
	t.configured = false
	t.enabled = false
	t.started = false
	t.ier = false
	t.cnt = 0
	t.pending = false
	t.resets++
	t.mu.Unlock()
}

// Configure implements core.UptimeTimer.
func (t *Timer) Configure() {
	t.mu.Lock()
	t.configured = true
	t.ier = true
	t.enabled = true
	t.started = true
	t.configures++
	t.mu.Unlock()
}

// SetCounting implements core.UptimeTimer. Clearing the enable bit also
// stops a running count; the counter keeps its value.
func (t *Timer) SetCounting(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	if !enabled {
		t.started = false
	}
	t.mu.Unlock()
}

// StartCount implements core.UptimeTimer.
func (t *Timer) StartCount() {
	t.mu.Lock()
	if t.enabled {
		t.started = true
	}
	t.mu.Unlock()
}

// Count implements core.UptimeTimer.
func (t *Timer) Count() uint32 {
	t.mu.Lock()
	hook := t.beforeRead
	t.mu.Unlock()
	if hook != nil {
		hook()
	}

	t.mu.Lock()
	v := t.cnt
	t.reads++
	step := t.autoStep
	t.mu.Unlock()

	if step > 0 {
		t.Advance(uint64(step))
	}
	return v
}

// PeriodPending implements core.UptimeTimer.
func (t *Timer) PeriodPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// AckInterrupt implements core.UptimeTimer.
func (t *Timer) AckInterrupt() {
	t.mu.Lock()
	t.pending = false
	t.acks++
	t.mu.Unlock()
}

// EnableIRQ implements core.UptimeTimer. A pending period is delivered
// immediately, as the interrupt controller would.
func (t *Timer) EnableIRQ() {
	t.mu.Lock()
	t.nvic = true
	fire := t.deliverableLocked()
	h := t.handler
	t.mu.Unlock()
	if fire && h != nil {
		h()
	}
}

// DisableIRQ implements core.UptimeTimer.
func (t *Timer) DisableIRQ() {
	t.mu.Lock()
	t.nvic = false
	t.mu.Unlock()
}

// Counting reports whether the model is currently counting.
func (t *Timer) Counting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countingLocked()
}

// Gated reports whether the bus clock is enabled.
func (t *Timer) Gated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gated
}

// IRQEnabled reports whether the interrupt line is enabled.
func (t *Timer) IRQEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nvic
}

// Reads returns how many times the in-period counter was read.
func (t *Timer) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}

// Resets returns how many peripheral reset pulses were issued.
func (t *Timer) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// Configures returns how many times the timer was programmed.
func (t *Timer) Configures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configures
}

// Acks returns how many interrupt acknowledgements were written.
func (t *Timer) Acks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acks
}
