package core

import "gouptime/protocol"

// InitUptimeCommands registers the uptime protocol commands.
// Registration order matters for the bootstrap pair: the host expects
//
//	identify_response = ID 0
//	identify = ID 1
func InitUptimeCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_millis", "", handleGetMillis)
	RegisterCommand("get_state", "", handleGetState)
	RegisterCommand("uptime_reset", "", handleUptimeReset)
	RegisterCommand("uptime_suspend", "", handleUptimeSuspend)
	RegisterCommand("uptime_resume", "", handleUptimeResume)

	// Responses (MCU -> host)
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("clock", "clock=%u")
	RegisterResponse("millis", "ms=%u")
	RegisterResponse("state", "state=%c millis=%u")

	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	RegisterConstant("PERIOD_TICKS", uint32(PeriodTicks))
}

// handleIdentify returns chunks of the data dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))

	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

// handleGetUptime reports 64-bit microseconds since reset
func handleGetUptime(data *[]byte) error {
	uptime := Uptime()

	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

// handleGetClock reports the wrapping 32-bit microsecond clock
func handleGetClock(data *[]byte) error {
	clock := Micros()

	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetMillis(data *[]byte) error {
	ms := Millis()

	SendResponse("millis", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, ms)
	})
	return nil
}

func handleGetState(data *[]byte) error {
	sendState()
	return nil
}

func handleUptimeReset(data *[]byte) error {
	Reset()
	sendState()
	return nil
}

func handleUptimeSuspend(data *[]byte) error {
	Suspend()
	sendState()
	return nil
}

func handleUptimeResume(data *[]byte) error {
	Resume()
	sendState()
	return nil
}

func sendState() {
	st := CurrentState()
	ms := Millis()

	SendResponse("state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(st))
		protocol.EncodeVLQUint(output, ms)
	})
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SendResponse sends a registered response using the global transport.
// It is a no-op until a transport is set.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		// All responses are registered at init; a miss is a firmware bug
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// HandleCommand is the protocol.CommandHandler that routes decoded frames
// into the global registry
func HandleCommand(cmdID uint16, data *[]byte) error {
	return DispatchCommand(cmdID, data)
}
