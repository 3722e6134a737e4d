package sim

import "testing"

// running returns a timer that is fully brought up, counting the
// interrupts it delivers
func running(t *testing.T) (*Timer, *int) {
	t.Helper()
	tm := NewTimer()
	irqs := new(int)
	tm.SetHandler(func() {
		*irqs++
		tm.AckInterrupt()
	})
	tm.ClockGate(true)
	tm.Configure()
	tm.EnableIRQ()
	if !tm.Counting() {
		t.Fatal("Expected timer counting after bring-up")
	}
	return tm, irqs
}

func TestTimerNotCountingUntilConfigured(t *testing.T) {
	tm := NewTimer()
	tm.Advance(5000)

	if tm.Count() != 0 || tm.PeriodPending() {
		t.Error("Unclocked timer must not count")
	}

	tm.ClockGate(true)
	tm.Advance(10)
	if tm.Count() != 0 {
		t.Error("Unconfigured timer must not count")
	}
}

func TestTimerPeriodInterrupts(t *testing.T) {
	tm, irqs := running(t)

	tm.Advance(2500)
	if *irqs != 2 {
		t.Errorf("Expected 2 interrupts, got %d", *irqs)
	}
	if tm.Count() != 500 {
		t.Errorf("Expected count 500, got %d", tm.Count())
	}

	tm.Elapse(3)
	if *irqs != 5 {
		t.Errorf("Expected 5 interrupts, got %d", *irqs)
	}
	if tm.Acks() != 5 {
		t.Errorf("Expected 5 acks, got %d", tm.Acks())
	}
}

func TestTimerIRQLineDisabled(t *testing.T) {
	tm, irqs := running(t)
	tm.DisableIRQ()

	tm.Elapse(1)
	if *irqs != 0 {
		t.Errorf("Expected no interrupt with line disabled, got %d", *irqs)
	}
	if !tm.PeriodPending() {
		t.Error("Expected period flag set")
	}

	tm.EnableIRQ()
	if *irqs != 1 {
		t.Errorf("Expected pending interrupt on enable, got %d", *irqs)
	}
}

func TestTimerMask(t *testing.T) {
	tm, irqs := running(t)
	tm.Mask()

	tm.Elapse(3)
	if *irqs != 0 {
		t.Errorf("Expected no interrupt while masked, got %d", *irqs)
	}

	tm.Unmask()
	// Three rollovers collapse into one pending flag
	if *irqs != 1 {
		t.Errorf("Expected one interrupt on unmask, got %d", *irqs)
	}
}

func TestTimerSuspendKeepsCount(t *testing.T) {
	tm, irqs := running(t)
	tm.Advance(321)

	tm.SetCounting(false)
	tm.Elapse(10)
	if tm.Count() != 321 || *irqs != 0 {
		t.Errorf("Expected frozen at 321 with no interrupts, got %d / %d", tm.Count(), *irqs)
	}

	// Enable alone does not restart the count
	tm.SetCounting(true)
	tm.Advance(10)
	if tm.Count() != 321 {
		t.Errorf("Expected count held until start, got %d", tm.Count())
	}

	tm.StartCount()
	tm.Advance(10)
	if tm.Count() != 331 {
		t.Errorf("Expected 331 after restart, got %d", tm.Count())
	}
}

func TestTimerPulseReset(t *testing.T) {
	tm, _ := running(t)
	tm.Advance(700)
	tm.Mask()
	tm.Elapse(1)

	tm.PulseReset()
	if tm.Count() != 0 || tm.PeriodPending() {
		t.Error("Expected counter and flags cleared by reset")
	}
	if tm.Counting() {
		t.Error("Expected configuration cleared by reset")
	}
	if tm.Resets() != 1 {
		t.Errorf("Expected 1 reset, got %d", tm.Resets())
	}
}

func TestTimerOscillator(t *testing.T) {
	tm := NewTimer()
	tm.SetOscillator(false, 3)

	if tm.OscillatorReady() {
		t.Fatal("Oscillator off must not be ready")
	}

	tm.EnableOscillator()
	polls := 1
	for !tm.OscillatorReady() {
		polls++
		if polls > 10 {
			t.Fatal("Oscillator never became ready")
		}
	}
	if polls != 3 {
		t.Errorf("Expected ready on poll 3, got %d", polls)
	}

	tm.SetOscillator(true, -1)
	for i := 0; i < 100; i++ {
		if tm.OscillatorReady() {
			t.Fatal("Oscillator set never-ready reported ready")
		}
	}
}

func TestTimerAutoStep(t *testing.T) {
	tm, irqs := running(t)
	tm.SetAutoStep(400)

	first := tm.Count()
	second := tm.Count()
	third := tm.Count()

	if first != 0 || second != 400 || third != 800 {
		t.Errorf("Expected 0, 400, 800, got %d, %d, %d", first, second, third)
	}
	if tm.Reads() != 3 {
		t.Errorf("Expected 3 reads, got %d", tm.Reads())
	}

	tm.Count()
	if *irqs != 1 {
		t.Errorf("Expected rollover interrupt from auto step, got %d", *irqs)
	}
}
