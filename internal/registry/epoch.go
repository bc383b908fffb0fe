// Package registry implements the Core's handler registry and transport
// slot: a copy-on-write snapshot behind an atomic pointer, with a reader
// count per snapshot, so that
// readers (the dispatcher, the fan-out, send_response/is_response_open) never
// block behind a writer and writers can wait for readers of a stale snapshot
// to drain before reusing or reporting completion.
//
// This generalizes the reader/writer asymmetry the teacher's queue runner
// achieves with per-tag atomics and mutexes (internal/queue/runner.go's
// TagState machine) to the Core's "many readers, rare exclusive writer"
// shape, matching the RCU-style strategy spec.md's Design Notes describe.
package registry

import (
	"sync"
	"sync/atomic"
)

// epoch holds one generation's worth of state plus a drain counter for
// readers that are still using it.
type epoch[T any] struct {
	val T
	wg  sync.WaitGroup
	// prev is the epoch replaced by replaceNoWait, whose readers have not
	// been waited for yet; the next replace waits for them too.
	prev *epoch[T]
}

// cow is a copy-on-write cell: readers snapshot it lock-free via enter/leave,
// writers replace it exclusively and can wait for the readers of earlier
// snapshots to finish via replace.
type cow[T any] struct {
	cur atomic.Pointer[epoch[T]]
}

func newCow[T any](initial T) *cow[T] {
	c := &cow[T]{}
	c.cur.Store(&epoch[T]{val: initial})
	return c
}

// enter returns the current epoch, having registered this goroutine as an
// active reader of it. It never blocks. Callers must call leave on the
// returned epoch exactly once, in all cases, typically via defer.
//
// The load-add-reload sequence guards against the race where a writer swaps
// the pointer between our read of cur and our registration on its
// WaitGroup: if the second load doesn't match, the writer may already be
// waiting on (or about to wait on) the epoch we almost joined, so we back
// out and retry against the new one.
func (c *cow[T]) enter() *epoch[T] {
	for {
		e := c.cur.Load()
		e.wg.Add(1)
		if c.cur.Load() == e {
			return e
		}
		e.wg.Done()
	}
}

func (e *epoch[T]) leave() {
	e.wg.Done()
}

// replace installs a new value, waiting for every reader that observed the
// previous value, or any value installed before it by replaceNoWait, to
// call leave before returning. Callers must serialize calls to replace
// themselves (the registry and slot types do this with a mutex) — concurrent
// replace calls on the same cow are not safe.
func (c *cow[T]) replace(val T) {
	old := c.cur.Load()
	next := &epoch[T]{val: val}
	c.cur.Store(next)
	for e := old; e != nil; e = e.prev {
		e.wg.Wait()
	}
}

// replaceNoWait installs a new value without waiting for the previous
// value's readers to drain. Safe to use when the new value is a superset of
// the old one (e.g. appending a handler): the old epoch is kept as prev, so
// the next replace still waits for its readers.
func (c *cow[T]) replaceNoWait(val T) {
	old := c.cur.Load()
	c.cur.Store(&epoch[T]{val: val, prev: old})
}

// snapshot returns the current value without tracking it as an in-flight
// read. Used only where no callback is invoked against the result (e.g.
// inspecting whether a slot is occupied for diagnostics).
func (c *cow[T]) snapshot() T {
	return c.cur.Load().val
}
