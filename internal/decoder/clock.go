package decoder

import "time"

// Clock returns a monotonic time in seconds.
type Clock interface {
	Now() float64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() float64

// Now calls f.
func (f ClockFunc) Now() float64 { return f() }

type wallClock struct {
	epoch time.Time
}

// WallClock returns a Clock counting seconds since its creation.
func WallClock() Clock {
	return wallClock{epoch: time.Now()}
}

func (c wallClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}
