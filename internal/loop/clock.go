package loop

import "time"

// Timer is a pending clock callback.
type Timer interface {
	// Stop prevents the timer from firing. Reports false if it already fired or was stopped.
	Stop() bool
}

// Clock abstracts time so timing-sensitive state machines can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock is the wall clock backed by the time package.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
