// Package pool bounds how many invoice emissions run at once in this process.
package pool

import (
	"context"
	"fmt"
)

const (
	minSlots = 1
	maxSlots = 128
)

// Pool is a counting semaphore over emission slots.
type Pool struct {
	sem chan struct{}
}

// New creates a pool with size slots, clamped to [1, 128].
func New(size int) *Pool {
	size = max(minSlots, min(size, maxSlots))
	return &Pool{sem: make(chan struct{}, size)}
}

// Acquire reserves one slot and returns the function that frees it.
// If the pool is full, it blocks until a slot becomes available or ctx is done,
// in which case the returned error wraps ctx.Err().
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case p.sem <- struct{}{}:
		return p.release, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for emission slot: %w", ctx.Err())
	}
}

func (p *Pool) release() {
	<-p.sem
}

// InUse returns the number of slots currently held.
func (p *Pool) InUse() int { return len(p.sem) }

// Cap returns the number of slots.
func (p *Pool) Cap() int { return cap(p.sem) }
