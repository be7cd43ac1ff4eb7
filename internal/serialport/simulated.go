package serialport

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/humidity.report/internal/timeutil"
)

// sensorFailureLine is what the ESP32 sketch prints when the DHT11 read fails.
const sensorFailureLine = "Failed to read from DHT sensor!"

// SimulatedDHT11 is a stand-in for the ESP32 + DHT11 board used in dev mode.
// It emits one "<humidity>,<temperature>" line per Interval, random-walking
// both values, and occasionally the sketch's failure message.
type SimulatedDHT11 struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	rng     *rand.Rand
	timeout time.Duration
	next    time.Time
	pending []byte
	closed  bool

	// Interval between emitted records.
	Interval time.Duration
	// FailureRate is the probability of emitting the failure message instead
	// of a reading.
	FailureRate float64

	humidity    float64
	temperature float64
}

// NewSimulatedDHT11 creates a simulated board seeded with seed.
func NewSimulatedDHT11(clock timeutil.Clock, seed uint64) *SimulatedDHT11 {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SimulatedDHT11{
		clock:       clock,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		timeout:     time.Second,
		next:        clock.Now(),
		Interval:    time.Second,
		FailureRate: 0.02,
		humidity:    55.0,
		temperature: 23.0,
	}
}

// SimulatedFactory returns a Factory that hands out a fresh SimulatedDHT11
// for any path.
func SimulatedFactory(clock timeutil.Clock, seed uint64) Factory {
	return FactoryFunc(func(path string, opts PortOptions) (SerialPorter, error) {
		if _, err := opts.Normalize(); err != nil {
			return nil, err
		}
		return NewSimulatedDHT11(clock, seed), nil
	})
}

// Read returns buffered output, or waits up to the read timeout for the next
// record to be due.
func (s *SimulatedDHT11) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrPortClosed
	}

	if len(s.pending) == 0 {
		wait := s.next.Sub(s.clock.Now())
		if wait > s.timeout {
			s.clock.Sleep(s.timeout)
			return 0, nil
		}
		if wait > 0 {
			s.clock.Sleep(wait)
		}
		s.pending = append(s.pending, s.record()...)
		s.next = s.clock.Now().Add(s.Interval)
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *SimulatedDHT11) record() string {
	if s.rng.Float64() < s.FailureRate {
		return sensorFailureLine + "\r\n"
	}
	s.humidity = clamp(s.humidity+s.rng.NormFloat64()*0.5, 20, 90)
	s.temperature = clamp(s.temperature+s.rng.NormFloat64()*0.1, 0, 50)
	return fmt.Sprintf("%.2f,%.2f\r\n", s.humidity, s.temperature)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// Write accepts and discards input; the sketch reads nothing.
func (s *SimulatedDHT11) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrPortClosed
	}
	return len(p), nil
}

// Close stops the simulation.
func (s *SimulatedDHT11) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetReadTimeout implements TimeoutSerialPorter.
func (s *SimulatedDHT11) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	return nil
}
