package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// RealFactory opens hardware ports through go.bug.st/serial.
type RealFactory struct{}

// Open opens the port at path. The returned serial.Port satisfies
// TimeoutSerialPorter.
func (RealFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// ListPorts returns the serial ports visible to the operating system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
