package jobs

import "time"

// Timer is the part of *time.Timer the tracker needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for removal scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock uses the time package.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
