package core

// Alarm is a software timer that fires once Millis() reaches WakeTime
type Alarm struct {
	WakeTime uint32
	Handler  func(*Alarm) uint8
	Next     *Alarm
}

// Handler results
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var alarmList *Alarm

// before reports whether a is earlier than b on the wrapping millisecond
// clock. Valid while the two are less than 2^31 ms apart.
func before(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleAlarm adds an alarm to the schedule
func ScheduleAlarm(a *Alarm) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	insertAlarm(a)
}

// CancelAlarm removes an alarm if it is scheduled. Reports whether it was.
func CancelAlarm(a *Alarm) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for link := &alarmList; *link != nil; link = &(*link).Next {
		if *link == a {
			*link = a.Next
			a.Next = nil
			return true
		}
	}
	return false
}

// insertAlarm inserts an alarm in wake order. Alarms with equal wake times
// keep their scheduling order.
func insertAlarm(a *Alarm) {
	if alarmList == nil || before(a.WakeTime, alarmList.WakeTime) {
		a.Next = alarmList
		alarmList = a
		return
	}

	current := alarmList
	for current.Next != nil && !before(a.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	a.Next = current.Next
	current.Next = a
}

// nextDue unlinks and returns the first alarm due at now, or nil
func nextDue(now uint32) *Alarm {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	a := alarmList
	if a == nil || before(now, a.WakeTime) {
		return nil
	}
	alarmList = a.Next
	a.Next = nil
	return a
}

// DispatchAlarms runs every alarm that is due. Call it from the main loop.
// Handlers run with interrupts enabled, so they may use Millis, Micros and
// the delay functions. A handler returning SF_RESCHEDULE is expected to have
// moved its WakeTime forward; it runs again on a later dispatch at the earliest.
func DispatchAlarms() int {
	now := Millis()
	fired := 0
	var again *Alarm
	for {
		a := nextDue(now)
		if a == nil {
			break
		}
		fired++
		RecordEvent(EvtAlarm, a.WakeTime)

		if a.Handler(a) == SF_RESCHEDULE {
			a.Next = again
			again = a
		}
	}
	for again != nil {
		a := again
		again = a.Next
		ScheduleAlarm(a)
	}
	return fired
}

// PendingAlarms returns the number of scheduled alarms
func PendingAlarms() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := 0
	for a := alarmList; a != nil; a = a.Next {
		n++
	}
	return n
}

// ClearAlarms drops every scheduled alarm
func ClearAlarms() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for alarmList != nil {
		a := alarmList
		alarmList = a.Next
		a.Next = nil
	}
}
