package core

// DelayMs busy-waits until at least ms milliseconds have elapsed.
//
// The elapsed time is computed with unsigned subtraction, so a counter wrap
// during the wait is harmless. Durations close to the 2^32 ms horizon are not
// supported. The loop never yields and does not notice Suspend or DeInit:
// waiting on a frozen clock never returns.
func DelayMs(ms uint32) {
	if ms == 0 {
		return
	}
	start := Millis()
	for Millis()-start < ms {
	}
}

// DelayUs busy-waits until at least us microseconds have elapsed.
// Same wraparound rules as DelayMs, with a horizon of 2^32 us.
func DelayUs(us uint32) {
	if us == 0 {
		return
	}
	start := Micros()
	for Micros()-start < us {
	}
}
