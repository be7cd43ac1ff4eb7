package acquisition

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises one measured quantity over a session.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary describes a finished (or running) session.
type Summary struct {
	Count       int     `json:"count"`
	Duration    float64 `json:"duration_seconds"`
	Humidity    Stats   `json:"humidity"`
	Temperature Stats   `json:"temperature"`
}

// Summarize computes per-quantity statistics. StdDev is the sample standard
// deviation and is zero for fewer than two samples.
func Summarize(samples []Sample) Summary {
	sum := Summary{Count: len(samples)}
	if len(samples) == 0 {
		return sum
	}

	hum := make([]float64, len(samples))
	temp := make([]float64, len(samples))
	for i, s := range samples {
		hum[i] = s.Humidity
		temp[i] = s.Temperature
	}

	sum.Duration = samples[len(samples)-1].Elapsed
	sum.Humidity = describe(hum)
	sum.Temperature = describe(temp)
	return sum
}

func describe(xs []float64) Stats {
	st := Stats{
		Mean: stat.Mean(xs, nil),
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}
	if len(xs) > 1 {
		st.StdDev = stat.StdDev(xs, nil)
	}
	return st
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "no samples recorded"
	}
	return fmt.Sprintf("%d samples over %.1fs; humidity mean %.2f%% (sd %.2f, %.2f..%.2f); temperature mean %.2fC (sd %.2f, %.2f..%.2f)",
		s.Count, s.Duration,
		s.Humidity.Mean, s.Humidity.StdDev, s.Humidity.Min, s.Humidity.Max,
		s.Temperature.Mean, s.Temperature.StdDev, s.Temperature.Min, s.Temperature.Max)
}
