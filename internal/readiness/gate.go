// Package readiness implements the one-shot asynchronous initialization used by
// every pantry middleware.
//
// A Gate moves through Uninitialized -> Initializing -> Ready | Failed exactly
// once. The initializer runs on its own goroutine; callers that arrive while it
// is running are queued and released in arrival order when it settles, and all
// of them observe the same value or error. There is no retry: a failed gate
// stays failed.
package readiness

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of a Gate.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gate holds the outcome of a single asynchronous initialization.
type Gate[T any] struct {
	mu      sync.Mutex
	state   State
	value   T
	err     error
	waiters []chan struct{}
	settled chan struct{}
}

// New returns a gate in the Uninitialized state.
func New[T any]() *Gate[T] {
	return &Gate[T]{settled: make(chan struct{})}
}

// Start returns a gate that is already running init. callback, if non-nil, is
// invoked exactly once with the initialization error (nil on success) after
// the gate has settled and all queued waiters have been released.
func Start[T any](init func() (T, error), callback func(error)) *Gate[T] {
	g := New[T]()
	g.Run(init, callback)
	return g
}

// Run begins initialization. Calling Run on a gate that is not Uninitialized
// panics; the single-writer discipline is part of the contract.
func (g *Gate[T]) Run(init func() (T, error), callback func(error)) {
	g.mu.Lock()
	if g.state != StateUninitialized {
		g.mu.Unlock()
		panic(fmt.Sprintf("readiness: Run called on %s gate", g.state))
	}
	g.state = StateInitializing
	g.mu.Unlock()

	go func() {
		value, err := g.call(init)
		g.settle(value, err)
		if callback != nil {
			callback(err)
		}
	}()
}

// call runs init and converts a panic into a failed outcome so that waiters
// are never stranded.
func (g *Gate[T]) call(init func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initialization panicked: %v", r)
		}
	}()
	return init()
}

func (g *Gate[T]) settle(value T, err error) {
	g.mu.Lock()
	if err != nil {
		g.state = StateFailed
		g.err = err
	} else {
		g.state = StateReady
		g.value = value
	}
	waiters := g.waiters
	g.waiters = nil
	close(g.settled)
	g.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Wait blocks until the gate settles or ctx is done. A cancelled context only
// abandons this caller's wait; it does not affect the initialization.
func (g *Gate[T]) Wait(ctx context.Context) (T, error) {
	g.mu.Lock()
	switch g.state {
	case StateReady:
		value := g.value
		g.mu.Unlock()
		return value, nil
	case StateFailed:
		err := g.err
		g.mu.Unlock()
		var zero T
		return zero, err
	}
	ch := make(chan struct{})
	g.waiters = append(g.waiters, ch)
	g.mu.Unlock()

	select {
	case <-ch:
		return g.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (g *Gate[T]) result() (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateFailed {
		var zero T
		return zero, g.err
	}
	return g.value, nil
}

// State returns the current lifecycle state.
func (g *Gate[T]) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the number of queued waiters.
func (g *Gate[T]) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// Done returns a channel closed once the gate has settled.
func (g *Gate[T]) Done() <-chan struct{} {
	return g.settled
}

// Err returns the initialization error, or nil while pending or when ready.
func (g *Gate[T]) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
