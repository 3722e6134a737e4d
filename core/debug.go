package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// ClockEvent captures a timebase event for post-mortem analysis
type ClockEvent struct {
	EventType uint8  // Event type code
	Millis    uint32 // Uptime counter when recorded
	Value     uint32 // Context-dependent value
}

// Event type codes
const (
	EvtInit       = 1 // Init completed
	EvtDeInit     = 2 // DeInit completed
	EvtReset      = 3 // Counter reset (value = count before reset)
	EvtSuspend    = 4 // Timebase frozen
	EvtResume     = 5 // Timebase resumed
	EvtOscTimeout = 6 // Bounded oscillator wait gave up (value = polls)
	EvtAlarm      = 7 // Alarm dispatched (value = wake time)
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]ClockEvent
	eventRingHead uint8 // Next write position

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Drops the message if the channel is full
func DebugAsync(msg string) {
	if debugEnabled && debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordEvent stores an event in the ring buffer, stamped with the current
// uptime counter. Never blocks and never touches the timer hardware.
func RecordEvent(eventType uint8, value uint32) {
	idx := eventRingHead
	eventRing[idx] = ClockEvent{
		EventType: eventType,
		Millis:    uptimeMillis.Load(),
		Value:     value,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// RecentEvents returns the recorded events from oldest to newest
func RecentEvents() []ClockEvent {
	events := make([]ClockEvent, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

func eventName(eventType uint8) string {
	switch eventType {
	case EvtInit:
		return "INIT"
	case EvtDeInit:
		return "DEINIT"
	case EvtReset:
		return "RESET"
	case EvtSuspend:
		return "SUSPEND"
	case EvtResume:
		return "RESUME"
	case EvtOscTimeout:
		return "OSC_TIMEOUT!"
	case EvtAlarm:
		return "ALARM"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing outputs the event ring buffer (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[UPTIME] === Event Ring Dump ===")
	for _, evt := range RecentEvents() {
		debugPrintln("[UPTIME] " + eventName(evt.EventType) +
			" ms=" + utoa(evt.Millis) +
			" v=" + utoa(evt.Value))
	}
	debugPrintln("[UPTIME] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = ClockEvent{}
	}
	eventRingHead = 0
}
