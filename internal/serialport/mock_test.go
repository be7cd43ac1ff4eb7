package serialport

import (
	"errors"
	"testing"
)

func TestTestableSerialPort_ReadWriteClose(t *testing.T) {
	port := NewTestableSerialPort()

	buf := make([]byte, 16)
	if n, err := port.Read(buf); n != 0 || err != nil {
		t.Errorf("empty Read = (%d, %v), want (0, nil)", n, err)
	}

	port.AddLines("a", "b")
	n, err := port.Read(buf)
	if err != nil || string(buf[:n]) != "a\nb\n" {
		t.Errorf("Read = (%q, %v)", buf[:n], err)
	}

	if _, err := port.Write([]byte("cmd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if string(port.GetWrittenData()) != "cmd" {
		t.Errorf("written = %q", port.GetWrittenData())
	}

	port.Close()
	port.Close()
	if port.CloseCalls != 2 || !port.Closed {
		t.Errorf("CloseCalls = %d, Closed = %v", port.CloseCalls, port.Closed)
	}
	if _, err := port.Read(buf); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Read after close error = %v", err)
	}
}

func TestMockFactory(t *testing.T) {
	port := NewTestableSerialPort()
	f := NewMockFactory(port)

	if f.LastCall() != nil {
		t.Error("LastCall should be nil before Open")
	}

	got, err := f.Open("/dev/ttyUSB0", PortOptions{BaudRate: 9600})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != port {
		t.Error("Open returned a different port")
	}
	if call := f.LastCall(); call == nil || call.Path != "/dev/ttyUSB0" || call.Options.BaudRate != 9600 {
		t.Errorf("LastCall = %+v", call)
	}

	f.Error = errors.New("no such device")
	if _, err := f.Open("/dev/ttyUSB1", PortOptions{}); err == nil {
		t.Error("expected configured error")
	}
	if len(f.OpenCalls) != 2 {
		t.Errorf("OpenCalls = %d, want 2", len(f.OpenCalls))
	}
}

func TestRealFactory_RejectsInvalidOptions(t *testing.T) {
	if _, err := (RealFactory{}).Open("/dev/does-not-matter", PortOptions{StopBits: 5}); err == nil {
		t.Error("expected invalid options error before touching hardware")
	}
}

func TestRealFactory_MissingDevice(t *testing.T) {
	if _, err := (RealFactory{}).Open("/dev/humidity-report-no-such-port", PortOptions{}); err == nil {
		t.Error("expected error opening a missing device")
	}
}
