package serialport

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort implements TimeoutSerialPorter with configurable
// behaviour for testing. Like a hardware port with a read timeout, Read on an
// empty buffer returns (0, nil) instead of blocking.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// MaxRead caps the bytes returned per Read to simulate fragmented input.
	// Zero means no cap.
	MaxRead int

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// CloseCalls records the number of Close calls
	CloseCalls int

	// ReadCalls records the number of Read calls
	ReadCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read reads from the read buffer.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, ErrPortClosed
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.ReadBuffer.Len() == 0 {
		return 0, nil
	}

	if t.MaxRead > 0 && len(p) > t.MaxRead {
		p = p[:t.MaxRead]
	}
	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, ErrPortClosed
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.CloseCalls++
	t.Closed = true
	return t.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
}

// AddLines queues each line followed by a newline.
func (t *TestableSerialPort) AddLines(lines ...string) {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	t.AddReadData([]byte(b.String()))
}

// Unread returns the number of queued bytes not yet consumed by Read.
func (t *TestableSerialPort) Unread() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ReadBuffer.Len()
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// MockFactory implements Factory for testing.
type MockFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path    string
	Options PortOptions
}

// NewMockFactory creates a new MockFactory returning port.
func NewMockFactory(port SerialPorter) *MockFactory {
	return &MockFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Options: opts})

	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
