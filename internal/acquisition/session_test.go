package acquisition

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/humidity.report/internal/csvlog"
	"github.com/banshee-data/humidity.report/internal/fsutil"
	"github.com/banshee-data/humidity.report/internal/monitoring"
	"github.com/banshee-data/humidity.report/internal/serialport"
	"github.com/banshee-data/humidity.report/internal/timeutil"
)

const header = "Timestamp (Unix),Time (s),Humidity (%),Temperature (C)\n"

var t0 = time.Date(2026, 10, 15, 14, 30, 0, 0, time.Local)

type fixture struct {
	session *Session
	port    *serialport.TestableSerialPort
	factory *serialport.MockFactory
	fs      *fsutil.MemoryFileSystem
	clock   *timeutil.MockClock
}

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		port:  serialport.NewTestableSerialPort(),
		fs:    fsutil.NewMemoryFileSystem(),
		clock: timeutil.NewMockClock(t0),
	}
	f.factory = serialport.NewMockFactory(f.port)

	s, err := Open(Options{
		PortPath:    "/dev/cu.usbserial-0001",
		Port:        serialport.PortOptions{BaudRate: 115200},
		OutputDir:   "/data",
		SettleDelay: DefaultSettleDelay,
		Factory:     f.factory,
		FS:          f.fs,
		Clock:       f.clock,
	})
	require.NoError(t, err)
	f.session = s
	t.Cleanup(func() { s.Close() })
	return f
}

func (f *fixture) logContents(t *testing.T) string {
	t.Helper()
	data, err := f.fs.ReadFile(f.session.LogPath())
	require.NoError(t, err)
	return string(data)
}

func TestOpen(t *testing.T) {
	f := newFixture(t)

	call := f.factory.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "/dev/cu.usbserial-0001", call.Path)
	assert.Equal(t, 115200, call.Options.BaudRate)

	assert.Equal(t, DefaultReadTimeout, f.port.ReadTimeout)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.clock.Sleeps())

	assert.Equal(t, "/data/dht11_realtime_20261015_143000.csv", f.session.LogPath())
	assert.Equal(t, header, f.logContents(t))
	assert.NotEmpty(t, f.session.ID())
	assert.Zero(t, f.session.Len())
	assert.False(t, f.session.Closed())
}

func TestOpen_ConnectionErrorCreatesNoFile(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	factory := serialport.NewMockFactory(nil)
	factory.Error = errors.New("no such file or directory")

	_, err := Open(Options{
		PortPath:  "/dev/ttyUSB9",
		OutputDir: "/data",
		Factory:   factory,
		FS:        mfs,
		Clock:     timeutil.NewMockClock(t0),
	})

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "/dev/ttyUSB9", connErr.Port)
	assert.ErrorIs(t, err, factory.Error)
	assert.Empty(t, mfs.Files())
	assert.False(t, mfs.Exists("/data"))
}

func TestOpen_IOErrorClosesPort(t *testing.T) {
	port := serialport.NewTestableSerialPort()
	mfs := fsutil.NewMemoryFileSystem()
	mfs.CreateError = errors.New("permission denied")

	_, err := Open(Options{
		PortPath:  "/dev/ttyUSB0",
		OutputDir: "/readonly",
		Factory:   serialport.NewMockFactory(port),
		FS:        mfs,
		Clock:     timeutil.NewMockClock(t0),
	})

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "create", ioErr.Op)
	assert.ErrorIs(t, err, mfs.CreateError)
	assert.True(t, port.Closed, "serial port should be released")
	assert.Equal(t, 1, port.CloseCalls)
}

func TestOpen_ZeroSettleDelaySkipsSleep(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	s, err := Open(Options{
		PortPath:  "sim",
		OutputDir: "/data",
		Factory:   serialport.NewMockFactory(serialport.NewTestableSerialPort()),
		FS:        fsutil.NewMemoryFileSystem(),
		Clock:     clock,
	})
	require.NoError(t, err)
	defer s.Close()
	assert.Empty(t, clock.Sleeps())
}

func TestPollOnce_ValidRecords(t *testing.T) {
	tests := []struct {
		line        string
		humidity    float64
		temperature float64
	}{
		{"55.2,23.1", 55.2, 23.1},
		{"55.20,23.10", 55.2, 23.1},
		{" 60.0 , 24.5 \r", 60, 24.5},
		{"-5,-10.5", -5, -10.5},
		{"1e2,0", 100, 0},
		{"150,120", 150, 120},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := newFixture(t)
			f.port.AddLines(tt.line)

			got, err := f.session.PollOnce()
			require.NoError(t, err)
			assert.Equal(t, tt.humidity, got.Humidity)
			assert.Equal(t, tt.temperature, got.Temperature)
			assert.Equal(t, 1, f.session.Len())
		})
	}
}

func TestPollOnce_SkippedRecordsLeaveSessionUnchanged(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"bad data",
		"55.2",
		"55.2,23.1,40",
		"55.2;23.1",
		"abc,23.1",
		"55.2,xyz",
		"55.2,",
		"NaN,23.1",
		"55.2,Inf",
		"Failed to read from DHT sensor!",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			f := newFixture(t)
			f.port.AddLines(line)

			_, err := f.session.PollOnce()
			require.ErrorIs(t, err, ErrNoSample)

			var skip *ParseSkipError
			assert.ErrorAs(t, err, &skip)
			assert.Zero(t, f.session.Len())
			assert.Equal(t, header, f.logContents(t))
		})
	}
}

func TestPollOnce_NoDataIsNoSample(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.PollOnce()
	require.ErrorIs(t, err, ErrNoSample)
	assert.ErrorIs(t, err, serialport.ErrTimeout)
	assert.Zero(t, f.session.Len())
}

func TestPollOnce_FirstSampleElapsedIsZero(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(5 * time.Second)
	f.port.AddLines("55.2,23.1")

	got, err := f.session.PollOnce()
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Elapsed)
	assert.True(t, got.CaptureTime.Equal(t0.Add(5*time.Second)))
}

func TestPollOnce_ElapsedMonotonic(t *testing.T) {
	f := newFixture(t)

	steps := []time.Duration{0, 1500 * time.Millisecond, 0, 250 * time.Millisecond, 3 * time.Second}
	for _, step := range steps {
		f.clock.Advance(step)
		f.port.AddLines("50,20")
		_, err := f.session.PollOnce()
		require.NoError(t, err)
	}

	samples := f.session.Samples()
	require.Len(t, samples, len(steps))
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].Elapsed, samples[i-1].Elapsed)
	}
	assert.InDelta(t, 4.75, samples[len(samples)-1].Elapsed, 1e-9)
}

func TestPollOnce_ClockStepBackwardsIsClamped(t *testing.T) {
	f := newFixture(t)

	f.port.AddLines("50,20")
	_, err := f.session.PollOnce()
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	f.port.AddLines("51,21")
	_, err = f.session.PollOnce()
	require.NoError(t, err)

	f.clock.Set(t0.Add(3 * time.Second))
	f.port.AddLines("52,22")
	got, err := f.session.PollOnce()
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Elapsed)
}

func TestPollOnce_SkipBetweenReadings(t *testing.T) {
	f := newFixture(t)

	f.port.AddLines("55.2,23.1")
	_, err := f.session.PollOnce()
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	f.port.AddLines("bad data")
	_, err = f.session.PollOnce()
	require.ErrorIs(t, err, ErrNoSample)

	f.clock.Advance(time.Second)
	f.port.AddLines("60.0,24.5")
	_, err = f.session.PollOnce()
	require.NoError(t, err)

	samples := f.session.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, Sample{CaptureTime: t0, Elapsed: 0, Humidity: 55.2, Temperature: 23.1}, samples[0])
	assert.Equal(t, Sample{CaptureTime: t0.Add(2 * time.Second), Elapsed: 2, Humidity: 60, Temperature: 24.5}, samples[1])

	lines := strings.Split(strings.TrimSuffix(f.logContents(t), "\n"), "\n")
	require.Len(t, lines, 3, "header + 2 data rows")
	assert.Equal(t, strings.TrimSuffix(header, "\n"), lines[0])
}

func TestLogRoundTrip(t *testing.T) {
	f := newFixture(t)

	readings := []string{"55.2,23.1", "55.25,23.125", "60,24.5", "0.1,-0.3"}
	for i, line := range readings {
		f.clock.Advance(time.Duration(i) * 1333 * time.Millisecond)
		f.port.AddLines(line)
		_, err := f.session.PollOnce()
		require.NoError(t, err)
	}

	records, err := csvlog.ReadFile(f.fs, f.session.LogPath())
	require.NoError(t, err)

	samples := f.session.Samples()
	require.Len(t, records, len(samples))
	for i, rec := range records {
		assert.Equal(t, samples[i].Elapsed, rec.Elapsed)
		assert.Equal(t, samples[i].Humidity, rec.Humidity)
		assert.Equal(t, samples[i].Temperature, rec.Temperature)
		assert.WithinDuration(t, samples[i].CaptureTime, rec.Timestamp, time.Microsecond)
	}
}

func TestPollOnce_SerialErrorIsFatal(t *testing.T) {
	f := newFixture(t)
	readErr := errors.New("device disconnected")
	f.port.ReadError = readErr

	_, err := f.session.PollOnce()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSample)
	assert.ErrorIs(t, err, readErr)
	assert.Zero(t, f.session.Len())
	assert.Equal(t, header, f.logContents(t))
}

func TestPollOnce_WriteErrorDoesNotRecord(t *testing.T) {
	f := newFixture(t)
	f.fs.SetWriteError(errors.New("no space left on device"))
	f.port.AddLines("55.2,23.1")

	_, err := f.session.PollOnce()
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Zero(t, f.session.Len())
}

func TestClose_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.port.AddLines("55.2,23.1")
	_, err := f.session.PollOnce()
	require.NoError(t, err)

	before := f.logContents(t)
	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Close())

	assert.True(t, f.session.Closed())
	assert.Equal(t, 1, f.port.CloseCalls)
	assert.Equal(t, before, f.logContents(t))

	_, err = f.session.PollOnce()
	assert.Error(t, err)
}

func TestClose_PartialSession(t *testing.T) {
	s := &Session{}
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestClose_ReportsPortError(t *testing.T) {
	f := newFixture(t)
	f.port.CloseError = errors.New("ioctl failed")

	err := f.session.Close()
	assert.ErrorIs(t, err, f.port.CloseError)
	assert.NoError(t, f.session.Close())
}
