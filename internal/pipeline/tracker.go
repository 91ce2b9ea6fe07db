package pipeline

import "sync/atomic"

// Tracker counts running and failed steps using atomics.
// The zero value is ready to use.
type Tracker struct {
	running atomic.Int64
	failed  atomic.Int64
}

// Inc increments the running counter.
func (t *Tracker) Inc() { t.running.Add(1) }

// Dec decrements the running counter.
func (t *Tracker) Dec() { t.running.Add(-1) }

// Running returns the number of steps currently executing.
func (t *Tracker) Running() int64 { return t.running.Load() }

// Failed returns the number of step failures seen since start, fatal or not.
func (t *Tracker) Failed() int64 { return t.failed.Load() }

func (t *Tracker) fail() { t.failed.Add(1) }
