package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n < 0 {
		return "-" + u64toa(uint64(-n))
	}
	return u64toa(uint64(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	return u64toa(uint64(n))
}

func u64toa(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte // max uint64 is 20 digits
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// valueToString converts a dictionary constant to its string representation
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case uint32:
		return utoa(val)
	case uint64:
		return u64toa(val)
	default:
		return ""
	}
}
