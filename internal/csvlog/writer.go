// Package csvlog writes and reads the per-session CSV log of humidity and
// temperature samples.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/humidity.report/internal/fsutil"
)

// Header is the fixed first row of every log file.
var Header = []string{"Timestamp (Unix)", "Time (s)", "Humidity (%)", "Temperature (C)"}

const (
	filePrefix = "dht11_realtime_"
	fileLayout = "20060102_150405"
)

// FileName returns the log file name for a session opened at t, in t's
// location.
func FileName(t time.Time) string {
	return filePrefix + t.Format(fileLayout) + ".csv"
}

// Record is one data row of the log.
type Record struct {
	Timestamp   time.Time
	Elapsed     float64
	Humidity    float64
	Temperature float64
}

// Writer appends records to a log file, flushing after every row.
type Writer struct {
	file   io.WriteCloser
	csv    *csv.Writer
	path   string
	closed bool
}

// Create makes dir if needed, creates a log named for now inside it and
// writes the header. A file whose header cannot be written is removed.
func Create(fsys fsutil.FileSystem, dir string, now time.Time) (*Writer, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	file, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	w := &Writer{file: file, csv: csv.NewWriter(file), path: path}
	if err := w.writeRow(Header); err != nil {
		file.Close()
		fsys.Remove(path)
		return nil, fmt.Errorf("error writing CSV header: %w", err)
	}
	return w, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Write appends one record and flushes it to the file.
func (w *Writer) Write(r Record) error {
	if w.closed {
		return errors.New("log file is closed")
	}
	if err := w.writeRow(FormatRecord(r)); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	return nil
}

func (w *Writer) writeRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if s, ok := w.file.(fsutil.Syncer); ok {
		return s.Sync()
	}
	return nil
}

// Close flushes and closes the file. Calling Close again is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.csv.Flush()
	return errors.Join(w.csv.Error(), w.file.Close())
}

// FormatRecord renders r as CSV fields. Numbers use the shortest decimal
// form that parses back to the same float64.
func FormatRecord(r Record) []string {
	return []string{
		formatFloat(float64(r.Timestamp.UnixNano()) / 1e9),
		formatFloat(r.Elapsed),
		formatFloat(r.Humidity),
		formatFloat(r.Temperature),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
