package acquisition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sample is one timestamped humidity/temperature reading.
type Sample struct {
	CaptureTime time.Time `json:"capture_time"`
	Elapsed     float64   `json:"elapsed_seconds"`
	Humidity    float64   `json:"humidity"`
	Temperature float64   `json:"temperature"`
}

// String formats the sample as the per-sample console line.
func (s Sample) String() string {
	return fmt.Sprintf("Time=%.1fs  Hum=%.2f%%  Temp=%.2fC", s.Elapsed, s.Humidity, s.Temperature)
}

// ParseRecord parses a "<humidity>,<temperature>" record. Surrounding
// whitespace, including a trailing carriage return, is ignored.
func ParseRecord(line string) (humidity, temperature float64, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, 0, &ParseSkipError{Reason: "empty line"}
	}

	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0, &ParseSkipError{Line: line, Reason: fmt.Sprintf("expected 2 fields, got %d", len(parts))}
	}

	humidity, err = parseField(line, "humidity", parts[0])
	if err != nil {
		return 0, 0, err
	}
	temperature, err = parseField(line, "temperature", parts[1])
	if err != nil {
		return 0, 0, err
	}
	return humidity, temperature, nil
}

func parseField(line, name, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, &ParseSkipError{Line: line, Reason: "invalid " + name, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseSkipError{Line: line, Reason: name + " is not a finite number"}
	}
	return v, nil
}
