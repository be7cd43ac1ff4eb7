package serialport

import (
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/humidity.report/internal/timeutil"
)

func TestSimulatedDHT11_EmitsParseableRecords(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	sim := NewSimulatedDHT11(clock, 42)
	sim.FailureRate = 0

	lr, err := NewLineReader(sim, time.Second, clock)
	if err != nil {
		t.Fatalf("NewLineReader: %v", err)
	}

	for i := 0; i < 20; i++ {
		line, err := lr.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine %d: %v", i, err)
		}
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) != 2 {
			t.Fatalf("record %q does not have two fields", line)
		}
	}
}

func TestSimulatedDHT11_FailureMessage(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	sim := NewSimulatedDHT11(clock, 7)
	sim.FailureRate = 1

	lr, _ := NewLineReader(sim, time.Second, clock)
	line, err := lr.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if strings.TrimSpace(line) != sensorFailureLine {
		t.Errorf("got %q, want failure line", line)
	}
}

func TestSimulatedDHT11_TimesOutBetweenRecords(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	sim := NewSimulatedDHT11(clock, 1)
	sim.Interval = 10 * time.Second
	if err := sim.SetReadTimeout(time.Second); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	if n, _ := sim.Read(buf); n == 0 {
		t.Fatal("first record should be due immediately")
	}
	if n, err := sim.Read(buf); n != 0 || err != nil {
		t.Errorf("Read before next record = (%d, %v), want (0, nil)", n, err)
	}
	if sleeps := clock.Sleeps(); len(sleeps) == 0 || sleeps[len(sleeps)-1] != time.Second {
		t.Errorf("expected a read-timeout sleep, got %v", sleeps)
	}
}

func TestSimulatedDHT11_Close(t *testing.T) {
	sim := NewSimulatedDHT11(timeutil.NewMockClock(time.Now()), 1)
	if _, err := sim.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sim.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := sim.Read(make([]byte, 8)); err != ErrPortClosed {
		t.Errorf("Read after Close error = %v", err)
	}
}

func TestSimulatedFactory(t *testing.T) {
	f := SimulatedFactory(timeutil.NewMockClock(time.Now()), 3)
	port, err := f.Open("sim", PortOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := port.(TimeoutSerialPorter); !ok {
		t.Error("simulated port should support read timeouts")
	}
	if _, err := f.Open("sim", PortOptions{DataBits: 12}); err == nil {
		t.Error("expected invalid options to be rejected")
	}
}
