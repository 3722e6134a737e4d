// Package serial opens the serial link to an uptime MCU.
package serial

import (
	"io"
)

// Port is a serial connection to the MCU. Implementations exist for native
// serial devices; tests and the simulator use any io.ReadWriteCloser wrapped
// with NopFlush.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; the firmware UART runs at 250000
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration the firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}

type nopFlush struct {
	io.ReadWriteCloser
}

func (nopFlush) Flush() error { return nil }

// NopFlush adapts a plain stream to Port
func NopFlush(rwc io.ReadWriteCloser) Port {
	return nopFlush{rwc}
}
