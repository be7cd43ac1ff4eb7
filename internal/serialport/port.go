// Package serialport wraps the serial link to the sensor microcontroller:
// opening ports with validated options, reading newline-terminated records
// within a bounded time, and test doubles that stand in for hardware.
package serialport

import (
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities. A Read
// on such a port returns (0, nil) once the timeout elapses without data.
// go.bug.st/serial ports implement it.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// Factory opens serial ports. The session takes a Factory so tests can
// inject a port or an open failure.
type Factory interface {
	// Open opens the serial port at path with the given options.
	Open(path string, opts PortOptions) (SerialPorter, error)
}

// FactoryFunc adapts an ordinary function to the Factory interface.
type FactoryFunc func(path string, opts PortOptions) (SerialPorter, error)

// Open calls f(path, opts).
func (f FactoryFunc) Open(path string, opts PortOptions) (SerialPorter, error) {
	return f(path, opts)
}
