package csvlog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/banshee-data/humidity.report/internal/fsutil"
)

// Read parses a log written by Writer. The header must match exactly.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %q", header)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := ParseRecord(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

// ReadFile reads and parses the log at path.
func ReadFile(fsys fsutil.FileSystem, path string) ([]Record, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data))
}

// ParseRecord converts one data row back into a Record.
func ParseRecord(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}

	var vals [4]float64
	for i, field := range row {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Record{}, fmt.Errorf("failed to parse %s: %w", Header[i], err)
		}
		vals[i] = v
	}

	return Record{
		Timestamp:   time.Unix(0, int64(math.Round(vals[0]*1e9))),
		Elapsed:     vals[1],
		Humidity:    vals[2],
		Temperature: vals[3],
	}, nil
}
