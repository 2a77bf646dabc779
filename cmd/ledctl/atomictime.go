package main

import (
	"sync/atomic"
	"time"
)

// atomicTime boxes a time.Time behind atomic.Value so the pipeline's tick
// callback and the health checker's periodic probe can touch it without a
// mutex, matching the render loop's no-blocking-on-a-tick contract.
type atomicTime struct {
	v atomic.Value
}

func (a *atomicTime) Store(t time.Time) { a.v.Store(t) }

func (a *atomicTime) Load() time.Time {
	t, _ := a.v.Load().(time.Time)
	return t
}
