package core

import "time"

type Timer interface {
	Stop() bool
}

// Scheduler is the single logical thread the mesh runs on.
// Everything it invokes (posted funcs, timer callbacks, Go completions)
// runs on that thread, one at a time.
type Scheduler interface {
	Post(fn func())
	// Go runs work off the loop and posts done back onto it.
	Go(work func(), done func())
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}
