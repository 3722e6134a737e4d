// Package hosted runs the uptime firmware on hosted Go. The timebase is the
// sim timer model, advanced from the wall clock, and the protocol is spoken
// over any io.ReadWriteCloser (typically one end of a net.Pipe).
//
// The core package keeps a single global timebase, so only one Firmware may
// exist per process.
package hosted

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"gouptime/core"
	"gouptime/protocol"
	"gouptime/targets/sim"
)

// HeartbeatMillis is the period of the firmware's heartbeat alarm
const HeartbeatMillis = 500

// Firmware is a hosted instance of the uptime firmware
type Firmware struct {
	Timer *sim.Timer

	port      io.ReadWriteCloser
	input     *protocol.FifoBuffer
	output    *protocol.ScratchOutput
	transport *protocol.Transport

	// mu serializes the main loop against the simulated interrupt source,
	// standing in for the interrupt masking done on hardware
	mu sync.Mutex

	heartbeat  core.Alarm
	heartbeats uint32
}

var registerOnce sync.Once

// New wires the sim timer into core, registers the uptime commands and
// initializes the clock.
func New(port io.ReadWriteCloser) *Firmware {
	f := &Firmware{
		Timer:  sim.NewTimer(),
		port:   port,
		input:  protocol.NewFifoBuffer(256),
		output: protocol.NewScratchOutput(),
	}
	f.Timer.SetHandler(core.HandleTick)
	core.SetTimerDriver(f.Timer)

	registerOnce.Do(func() {
		core.InitUptimeCommands()
		core.RegisterConstant("MCU", "hosted-sim")
		core.GetGlobalDictionary().BuildDictionary()
	})

	f.transport = protocol.NewTransport(f.output, core.HandleCommand)
	f.transport.SetResetCallback(func() {
		f.input.Reset()
	})
	core.SetGlobalTransport(f.transport)

	core.ClearAlarms()
	core.Init()

	f.heartbeat.Handler = f.onHeartbeat
	f.heartbeat.WakeTime = core.Millis() + HeartbeatMillis
	core.ScheduleAlarm(&f.heartbeat)
	return f
}

func (f *Firmware) onHeartbeat(a *core.Alarm) uint8 {
	f.heartbeats++
	core.DebugAsync("[HOSTED] heartbeat " + strconv.FormatUint(uint64(f.heartbeats), 10) +
		" at " + strconv.FormatUint(uint64(core.Millis()), 10) + "ms")
	a.WakeTime += HeartbeatMillis
	return core.SF_RESCHEDULE
}

// Heartbeats returns how many heartbeat alarms have fired
func (f *Firmware) Heartbeats() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

// Run advances the timer from the wall clock and serves the protocol until
// ctx is cancelled or the port fails. It closes the port and stops the
// timer before returning.
func (f *Firmware) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		f.port.Close()
	}()
	go func() {
		defer wg.Done()
		f.tickLoop(ctx)
	}()

	buf := make([]byte, 64)
	for {
		n, err := f.port.Read(buf)
		if n > 0 {
			f.receive(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// tickLoop feeds elapsed wall-clock microseconds into the timer model and
// runs due alarms
func (f *Firmware) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	// Feed whole microseconds since start so truncation never accumulates
	start := time.Now()
	var fed uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			total := uint64(now.Sub(start) / time.Microsecond)
			step := total - fed
			fed = total

			f.mu.Lock()
			f.Timer.Advance(step)
			core.DispatchAlarms()
			f.mu.Unlock()
		}
	}
}

// receive processes one chunk of host input and writes out the replies
func (f *Firmware) receive(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// A panicking command must not stop the firmware
	defer func() {
		if r := recover(); r != nil {
			f.input.Reset()
			f.output.Reset()
		}
	}()

	f.input.Write(data)
	f.transport.Receive(f.input)

	if out := f.output.Result(); len(out) > 0 {
		f.port.Write(out)
		f.output.Reset()
	}
}
