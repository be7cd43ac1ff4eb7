package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/humidity.report/internal/monitoring"
	"github.com/banshee-data/humidity.report/internal/timeutil"
)

// DefaultPollInterval is the tick period used when none is configured.
const DefaultPollInterval = time.Second

// Notifier is told about every recorded sample. Displays and stores
// implement it; the runner knows nothing else about them.
type Notifier interface {
	SampleRecorded(Sample)
}

// NotifierFunc adapts an ordinary function to the Notifier interface.
type NotifierFunc func(Sample)

// SampleRecorded calls f(s).
func (f NotifierFunc) SampleRecorded(s Sample) { f(s) }

// Runner drives a Session: one PollOnce per tick, then notification. It ends
// the session when its context is cancelled, when Stop is called, or on a
// fatal error, and closes the session exactly once on every path.
type Runner struct {
	session   *Session
	interval  time.Duration
	clock     timeutil.Clock
	notifiers []Notifier

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRunner returns a runner that polls session every interval.
func NewRunner(session *Session, interval time.Duration, clock timeutil.Clock, notifiers ...Notifier) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		session:   session,
		interval:  interval,
		clock:     clock,
		notifiers: notifiers,
		stop:      make(chan struct{}),
	}
}

// Stop requests the end of the session, as a window close would. It may be
// called from any goroutine, any number of times.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed once Stop has been called.
func (r *Runner) Done() <-chan struct{} {
	return r.stop
}

// Run ticks until the session ends and returns after the session is closed.
// It returns nil when ended by cancellation or Stop, and the fatal error
// (joined with any close error) otherwise.
func (r *Runner) Run(ctx context.Context) (err error) {
	logf := monitoring.Logf

	defer func() {
		if cerr := r.session.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logf("Interrupt received, stopping session %s", r.session.ID())
			return nil
		case <-r.stop:
			logf("Stop requested, ending session %s", r.session.ID())
			return nil
		case <-ticker.C():
		}

		// Check again so a stop that raced the tick wins.
		select {
		case <-ctx.Done():
			logf("Interrupt received, stopping session %s", r.session.ID())
			return nil
		case <-r.stop:
			logf("Stop requested, ending session %s", r.session.ID())
			return nil
		default:
		}

		if err := r.Tick(); err != nil {
			logf("Unhandled error, ending session %s: %v", r.session.ID(), err)
			return err
		}
	}
}

// Tick performs one poll/record/notify cycle. Skipped records are logged and
// swallowed; only fatal errors are returned.
func (r *Runner) Tick() error {
	sample, err := r.session.PollOnce()
	if errors.Is(err, ErrNoSample) {
		monitoring.Logf("%v", err)
		return nil
	}
	if err != nil {
		return err
	}

	monitoring.Logf("%s", sample)
	for _, n := range r.notifiers {
		n.SampleRecorded(sample)
	}
	return nil
}
