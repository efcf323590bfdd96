package feed

import "time"

// TimerHandle is an owned, cancellable scheduled callback. Stop must be safe
// to call after the callback has fired.
type TimerHandle interface {
	Stop() bool
}

// Clock abstracts wall time and timer scheduling so expiry behaviour can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(d, fn)
}

// SystemClock returns the wall-clock implementation used outside tests.
func SystemClock() Clock {
	return systemClock{}
}
