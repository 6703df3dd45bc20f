package utils

import (
	"sync"
	"time"
)

// Clock supplies the current time. Stores and status derivation take a Clock
// so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

// StepClock returns start on the first call and moves forward by step on
// each call after that.
type StepClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{current: start, step: step}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}
