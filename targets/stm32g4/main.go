//go:build stm32g4

package main

import (
	"machine"

	"gouptime/core"
	"gouptime/protocol"
)

// Oscillator readiness polls before giving up at boot. HSI16 is normally
// ready within a few microseconds of HSION.
const oscillatorPolls = 100000

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	ledAlarm core.Alarm
	ledOn    bool

	msgErrors uint32
)

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 250000})
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})

	core.SetTimerDriver(newLPTIMTimer())
	if err := core.InitTimeout(oscillatorPolls); err != nil {
		// No timebase: report once and fall back to the unbounded wait
		core.SetDebugEnabled(true)
		core.DebugPrintln("[UPTIME] " + err.Error())
		core.SetDebugEnabled(false)
		core.Init()
	}

	core.InitUptimeCommands()
	core.RegisterConstant("MCU", "stm32g4")
	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, core.HandleCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	transport.SetFlushCallback(flushOutput)
	core.SetGlobalTransport(transport)

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	ledAlarm.Handler = toggleLED
	ledAlarm.WakeTime = core.Millis() + 500
	core.ScheduleAlarm(&ledAlarm)

	for {
		func() {
			// Recover from panics in the main loop to prevent a firmware crash
			defer func() {
				if r := recover(); r != nil {
					msgErrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			readSerial()
			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}
			flushOutput()

			core.DispatchAlarms()
		}()
	}
}

// toggleLED blinks the board LED from the uptime alarm list
func toggleLED(a *core.Alarm) uint8 {
	ledOn = !ledOn
	machine.LED.Set(ledOn)
	a.WakeTime += 500
	return core.SF_RESCHEDULE
}

func readSerial() {
	for machine.Serial.Buffered() > 0 && inputBuffer.Free() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return
		}
		inputBuffer.Write([]byte{b})
	}
}

func flushOutput() {
	if out := outputBuffer.Result(); len(out) > 0 {
		machine.Serial.Write(out)
		outputBuffer.Reset()
	}
}
