// Package display presents a running session: an in-memory plot model fed by
// the acquisition runner, PNG and HTML renderings of it, and an HTTP live
// view with a stop control.
package display

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/humidity.report/internal/acquisition"
)

// Axis policy for the live plot.
const (
	InitialXMax = 10.0
	XMargin     = 5.0
	YMin        = 0.0
	YMax        = 100.0
)

// Axes is the visible plot window.
type Axes struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Snapshot is a consistent copy of the chart state.
type Snapshot struct {
	Title   string               `json:"title"`
	Samples []acquisition.Sample `json:"samples"`
	Axes    Axes                 `json:"axes"`
	Redraws int                  `json:"redraws"`
}

// Chart is the live plot model. It implements acquisition.Notifier and is
// safe for concurrent use: the runner writes, HTTP handlers read.
type Chart struct {
	mu      sync.RWMutex
	title   string
	samples []acquisition.Sample
	xMax    float64
	redraws int

	subscriberMu sync.Mutex
	subscribers  map[string]chan acquisition.Sample
}

// NewChart returns an empty chart with the initial [0, 10] x window.
func NewChart(title string) *Chart {
	if title == "" {
		title = "Real-time DHT11 Data"
	}
	return &Chart{
		title:       title,
		xMax:        InitialXMax,
		subscribers: make(map[string]chan acquisition.Sample),
	}
}

// SampleRecorded appends s to both series and widens the x window when s
// falls past its right edge. Values outside the y window are kept.
func (c *Chart) SampleRecorded(s acquisition.Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	if s.Elapsed > c.xMax {
		c.xMax = s.Elapsed + XMargin
	}
	c.redraws++
	c.mu.Unlock()

	c.publish(s)
}

// Snapshot returns a copy of the current state.
func (c *Chart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	samples := make([]acquisition.Sample, len(c.samples))
	copy(samples, c.samples)
	return Snapshot{
		Title:   c.title,
		Samples: samples,
		Axes:    Axes{XMin: 0, XMax: c.xMax, YMin: YMin, YMax: YMax},
		Redraws: c.redraws,
	}
}

// Axes returns the current plot window.
func (c *Chart) Axes() Axes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Axes{XMin: 0, XMax: c.xMax, YMin: YMin, YMax: YMax}
}

// Subscribe registers a listener for new samples. Slow listeners miss
// samples rather than stall the runner.
func (c *Chart) Subscribe() (string, <-chan acquisition.Sample) {
	c.subscriberMu.Lock()
	defer c.subscriberMu.Unlock()

	id := uuid.NewString()
	ch := make(chan acquisition.Sample, 16)
	c.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes the listener registered under id.
func (c *Chart) Unsubscribe(id string) {
	c.subscriberMu.Lock()
	defer c.subscriberMu.Unlock()

	if ch, ok := c.subscribers[id]; ok {
		delete(c.subscribers, id)
		close(ch)
	}
}

// CloseSubscribers closes every listener; used at shutdown so streaming
// handlers return.
func (c *Chart) CloseSubscribers() {
	c.subscriberMu.Lock()
	defer c.subscriberMu.Unlock()

	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

func (c *Chart) publish(s acquisition.Sample) {
	c.subscriberMu.Lock()
	defer c.subscriberMu.Unlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
