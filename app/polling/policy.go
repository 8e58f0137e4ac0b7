// Package polling computes how often a feed should be fetched.
//
// A Policy is fixed configuration shared by all feeds. The per-feed State is
// a plain value: callers pass the current state in, get the next state back
// and are responsible for persisting it.
package polling

import (
	"fmt"
	"time"
)

type Policy struct {
	Default time.Duration // used when a feed declares no ttl
	Minimum time.Duration
	Ceiling time.Duration // backoff never grows past this
	Factor  float64       // multiplicative backoff, > 1
}

type State struct {
	Interval time.Duration
	TTL      *time.Duration // feed-declared, nil when absent
}

func (p Policy) Validate() error {
	if p.Factor <= 1 {
		return fmt.Errorf("backoff factor must be greater than 1, got %v", p.Factor)
	}
	// Intervals are persisted in whole seconds
	if p.Minimum < time.Second || p.Minimum%time.Second != 0 {
		return fmt.Errorf("minimum interval must be a whole number of seconds, at least 1s, got %v", p.Minimum)
	}
	if p.Ceiling%time.Second != 0 {
		return fmt.Errorf("backoff ceiling must be a whole number of seconds, got %v", p.Ceiling)
	}
	if p.Ceiling < p.Minimum {
		return fmt.Errorf("backoff ceiling %v is below minimum interval %v", p.Ceiling, p.Minimum)
	}
	if p.Default <= 0 {
		return fmt.Errorf("default interval must be positive, got %v", p.Default)
	}
	return nil
}

// ExpectedInterval is the interval a healthy feed should be polled at.
func (p Policy) ExpectedInterval(s State) time.Duration {
	if s.TTL != nil {
		return p.clamp(*s.TTL)
	}
	return p.clamp(p.Default)
}

func (p Policy) Initial(ttl *time.Duration) State {
	s := State{TTL: ttl}
	s.Interval = p.ExpectedInterval(s)
	return s
}

// OnSuccess recovers from a previous backoff. It never lengthens the
// interval and never shortens one that is already at or below the
// expected interval.
func (p Policy) OnSuccess(s State) State {
	if expected := p.ExpectedInterval(s); s.Interval > expected {
		s.Interval = expected
	}
	s.Interval = p.clamp(s.Interval)
	return s
}

func (p Policy) OnFailure(s State) State {
	current := s.Interval
	if current <= 0 {
		current = p.ExpectedInterval(s)
	}

	next := time.Duration(float64(current) * p.Factor)
	if next > p.Ceiling || next < current {
		// next < current only on overflow
		next = p.Ceiling
	}
	s.Interval = p.clamp(next)
	return s
}

func (p Policy) clamp(d time.Duration) time.Duration {
	if d < p.Minimum {
		return p.Minimum
	}
	if d > p.Ceiling {
		return p.Ceiling
	}
	return d
}
