package application

import "time"

// Clock so time-dependent logic can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock default implementation using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
