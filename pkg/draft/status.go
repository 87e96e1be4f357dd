package draft

import (
	"sync"
	"time"
)

// Notifier surfaces messages to the user.
// Warn is a one-off blocking notice; Status is a transient indicator.
type Notifier interface {
	Warn(msg string)
	Status(msg string, isError bool)
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Warn(string)         {}
func (NopNotifier) Status(string, bool) {}

// StatusDismissAfter is how long a status message stays visible.
const StatusDismissAfter = 2 * time.Second

// StatusIndicator is a Notifier that keeps the latest status visible for
// StatusDismissAfter, restarting the timer on each new message.
type StatusIndicator struct {
	clock Clock

	mu       sync.Mutex
	message  string
	isError  bool
	visible  bool
	timer    Timer
	seq      uint64
	warnings []string
}

// NewStatusIndicator creates an indicator driven by clock.
func NewStatusIndicator(clock Clock) *StatusIndicator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatusIndicator{clock: clock}
}

// Warn records a warning.
func (s *StatusIndicator) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

// Status shows msg until it is dismissed.
func (s *StatusIndicator) Status(msg string, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
	s.isError = isError
	s.visible = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = s.clock.AfterFunc(StatusDismissAfter, func() { s.dismiss(seq) })
}

// Current returns the visible message, if any.
func (s *StatusIndicator) Current() (msg string, isError, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message, s.isError, s.visible
}

// Warnings returns every warning shown so far.
func (s *StatusIndicator) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

func (s *StatusIndicator) dismiss(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A timer that fired before Stop could cancel it belongs to an older message.
	if seq != s.seq {
		return
	}
	s.visible = false
	s.timer = nil
}
