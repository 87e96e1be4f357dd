package draft

import (
	"sync"
	"time"
)

const (
	// DefaultFastInterval debounces local writes.
	DefaultFastInterval = 400 * time.Millisecond

	// DefaultSlowInterval debounces remote saves.
	DefaultSlowInterval = 3 * time.Second
)

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so debounce behavior can be driven in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer coalesces bursts of triggers into one call that runs after the
// interval has elapsed with no further trigger. At most one call is pending.
type Debouncer struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu    sync.Mutex
	timer Timer
	seq   uint64
}

// NewDebouncer creates a Debouncer calling fn.
func NewDebouncer(clock Clock, interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: clock, interval: interval, fn: fn}
}

// Trigger restarts the pending timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.interval, func() { d.fire(seq) })
}

// Flush runs a pending call immediately. It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.seq++
	d.mu.Unlock()
	d.fn()
}

// Stop cancels a pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A Trigger, Flush or Stop after this timer was armed supersedes it.
	if seq != d.seq || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// EventType is the kind of UI event reaching the form root.
type EventType string

const (
	EventInput  EventType = "input"
	EventChange EventType = "change"
	EventClick  EventType = "click"
	EventFocus  EventType = "focus"
)

// Event is a UI event captured at the form root.
type Event struct {
	Type   EventType
	Target string
}

// Scheduler fans one mutation stream out to two independently debounced channels.
type Scheduler struct {
	fast *Debouncer
	slow *Debouncer
}

// NewScheduler creates a Scheduler. saveLocal runs on the fast channel and
// saveRemote on the slow one; they share nothing else.
func NewScheduler(clock Clock, fastInterval, slowInterval time.Duration, saveLocal, saveRemote func()) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if fastInterval <= 0 {
		fastInterval = DefaultFastInterval
	}
	if slowInterval <= 0 {
		slowInterval = DefaultSlowInterval
	}
	return &Scheduler{
		fast: NewDebouncer(clock, fastInterval, saveLocal),
		slow: NewDebouncer(clock, slowInterval, saveRemote),
	}
}

// Notify restarts both channels for input and change events and reports
// whether the event qualified.
func (s *Scheduler) Notify(ev Event) bool {
	if ev.Type != EventInput && ev.Type != EventChange {
		return false
	}
	s.Trigger()
	return true
}

// Trigger restarts both channels unconditionally.
func (s *Scheduler) Trigger() {
	s.fast.Trigger()
	s.slow.Trigger()
}

// Flush runs whatever is pending on both channels now.
func (s *Scheduler) Flush() {
	s.fast.Flush()
	s.slow.Flush()
}

// Stop cancels both channels.
func (s *Scheduler) Stop() {
	s.fast.Stop()
	s.slow.Stop()
}

// Pending reports whether each channel has a call scheduled.
func (s *Scheduler) Pending() (fast, slow bool) {
	return s.fast.Pending(), s.slow.Pending()
}
