package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/humidity.report/internal/timeutil"
)

// ErrTimeout is returned by ReadLine when no complete record arrived within
// the read timeout.
var ErrTimeout = errors.New("serial read timed out")

// MaxLineLength bounds how many bytes are buffered while waiting for a
// newline. A longer run is returned as a line so the parser can reject it.
const MaxLineLength = 4096

// LineReader reads newline-terminated records from a port. Bytes received
// after a newline, or before a timeout, are kept for the next call.
type LineReader struct {
	port    io.Reader
	clock   timeutil.Clock
	timeout time.Duration
	pending []byte
	chunk   []byte
}

// NewLineReader returns a reader that bounds each ReadLine call by timeout,
// measured on clock. If port implements TimeoutSerialPorter its own read
// timeout is set to the same bound.
func NewLineReader(port io.Reader, timeout time.Duration, clock timeutil.Clock) (*LineReader, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if tp, ok := port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(timeout); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	return &LineReader{
		port:    port,
		clock:   clock,
		timeout: timeout,
		chunk:   make([]byte, 256),
	}, nil
}

// ReadLine returns the next record without its trailing newline. A read that
// returns no bytes is treated as the port's timeout expiring; ErrTimeout is
// returned in that case and when the deadline passes mid-record. io.EOF from
// the port counts as no data. Any other read error is returned as is.
func (lr *LineReader) ReadLine() (string, error) {
	deadline := lr.clock.Now().Add(lr.timeout)

	for {
		if i := bytes.IndexByte(lr.pending, '\n'); i >= 0 {
			line := string(lr.pending[:i])
			lr.pending = lr.pending[i+1:]
			return line, nil
		}
		if len(lr.pending) >= MaxLineLength {
			line := string(lr.pending)
			lr.pending = nil
			return line, nil
		}

		n, err := lr.port.Read(lr.chunk)
		lr.pending = append(lr.pending, lr.chunk[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if n == 0 || !lr.clock.Now().Before(deadline) {
			if bytes.IndexByte(lr.pending, '\n') >= 0 {
				continue
			}
			return "", ErrTimeout
		}
	}
}

// Buffered returns the number of bytes held back for the next ReadLine.
func (lr *LineReader) Buffered() int {
	return len(lr.pending)
}
