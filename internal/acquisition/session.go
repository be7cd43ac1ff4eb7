// Package acquisition owns the lifecycle of one humidity/temperature logging
// session: the serial connection to the sensor board, the CSV log it mirrors
// into, and the tick loop that polls one record at a time.
package acquisition

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/humidity.report/internal/csvlog"
	"github.com/banshee-data/humidity.report/internal/fsutil"
	"github.com/banshee-data/humidity.report/internal/monitoring"
	"github.com/banshee-data/humidity.report/internal/serialport"
	"github.com/banshee-data/humidity.report/internal/timeutil"
)

const (
	// DefaultReadTimeout bounds each PollOnce read.
	DefaultReadTimeout = time.Second
	// DefaultSettleDelay gives the ESP32 time to finish booting after the
	// port is opened, which resets the board.
	DefaultSettleDelay = 2 * time.Second
)

var logf = monitoring.Prefixed("session")

// Options configures Open. PortPath and OutputDir are required; zero values
// elsewhere select the defaults and production implementations.
type Options struct {
	PortPath    string
	Port        serialport.PortOptions
	OutputDir   string
	ReadTimeout time.Duration
	// SettleDelay is used as given; zero disables the wait.
	SettleDelay time.Duration

	Factory serialport.Factory
	FS      fsutil.FileSystem
	Clock   timeutil.Clock
}

// Session pairs one serial connection with one log file. It is not safe for
// concurrent use; the runner drives it from a single goroutine.
type Session struct {
	id      string
	clock   timeutil.Clock
	port    serialport.SerialPorter
	lines   *serialport.LineReader
	log     *csvlog.Writer
	samples []Sample

	first   time.Time
	started bool
	closed  bool
}

// Open connects to the sensor, waits for it to settle and creates the log
// file. On failure nothing is left open: a port that cannot be opened never
// creates a log file, and a log file that cannot be created closes the port.
func Open(opts Options) (*Session, error) {
	if opts.Factory == nil {
		opts.Factory = serialport.RealFactory{}
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	s := &Session{id: uuid.NewString(), clock: opts.Clock}

	port, err := opts.Factory.Open(opts.PortPath, opts.Port)
	if err != nil {
		return nil, &ConnectionError{Port: opts.PortPath, Err: err}
	}
	s.port = port

	s.lines, err = serialport.NewLineReader(port, opts.ReadTimeout, opts.Clock)
	if err != nil {
		s.Close()
		return nil, &ConnectionError{Port: opts.PortPath, Err: err}
	}

	if opts.SettleDelay > 0 {
		opts.Clock.Sleep(opts.SettleDelay)
	}

	s.log, err = csvlog.Create(opts.FS, opts.OutputDir, opts.Clock.Now())
	if err != nil {
		s.Close()
		return nil, &IOError{Path: opts.OutputDir, Op: "create", Err: err}
	}

	logf("session %s: %s at %s", s.id, opts.PortPath, opts.Port)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// LogPath returns the path of the session's log file.
func (s *Session) LogPath() string {
	if s.log == nil {
		return ""
	}
	return s.log.Path()
}

// Samples returns a copy of the samples recorded so far.
func (s *Session) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Len returns the number of samples recorded so far.
func (s *Session) Len() int { return len(s.samples) }

// Closed reports whether Close has run.
func (s *Session) Closed() bool { return s.closed }

// PollOnce reads one record and, if it parses, records it. Skipped ticks
// return an error matching ErrNoSample and leave the session unchanged. A
// serial read failure or a log write failure is returned as a fatal error.
func (s *Session) PollOnce() (Sample, error) {
	if s.closed {
		return Sample{}, errors.New("session is closed")
	}

	line, err := s.lines.ReadLine()
	if errors.Is(err, serialport.ErrTimeout) {
		return Sample{}, &ParseSkipError{Reason: "no data within read timeout", Err: err}
	}
	if err != nil {
		return Sample{}, fmt.Errorf("serial read failed: %w", err)
	}

	humidity, temperature, err := ParseRecord(line)
	if err != nil {
		return Sample{}, err
	}

	now := s.clock.Now()
	elapsed := 0.0
	if s.started {
		elapsed = now.Sub(s.first).Seconds()
		// A wall clock step backwards must not reorder the series.
		if last := s.samples[len(s.samples)-1].Elapsed; elapsed < last {
			elapsed = last
		}
	}

	sample := Sample{
		CaptureTime: now,
		Elapsed:     elapsed,
		Humidity:    humidity,
		Temperature: temperature,
	}

	if err := s.log.Write(csvlog.Record{
		Timestamp:   sample.CaptureTime,
		Elapsed:     sample.Elapsed,
		Humidity:    sample.Humidity,
		Temperature: sample.Temperature,
	}); err != nil {
		return Sample{}, &IOError{Path: s.log.Path(), Op: "write", Err: err}
	}

	if !s.started {
		s.first = now
		s.started = true
	}
	s.samples = append(s.samples, sample)
	return sample, nil
}

// Close flushes and closes the log file, then closes the serial port. It is
// safe to call more than once and on a partially opened session.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			errs = append(errs, &IOError{Path: s.log.Path(), Op: "close", Err: err})
		}
	}
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close serial port: %w", err))
		}
	}
	logf("session %s: resources closed", s.id)
	return errors.Join(errs...)
}
