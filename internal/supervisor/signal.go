package supervisor

import "sync"

// StopSignal is a one-shot event: once set it stays set. It is safe to set
// from any goroutine any number of times.
type StopSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewStopSignal returns an unset signal
func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Set sets the signal. Calls after the first have no effect.
func (s *StopSignal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// Done is closed once the signal is set
func (s *StopSignal) Done() <-chan struct{} {
	return s.ch
}

// IsSet reports whether the signal has been set
func (s *StopSignal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
