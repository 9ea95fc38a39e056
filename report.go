// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"slices"
	"sync"
)

// reporter delivers errors raised on the queue worker away from the worker,
// so an error callback may call back into the queue.
//
// Deliveries start in the order they were posted. Delivery goroutines are
// started on demand and exit when nothing is pending. A fence closes once
// every delivery posted before it has been handed to the callback; when all
// delivery goroutines are blocked inside callbacks, a fence starts another
// one so a callback waiting on the queue cannot stall its own fence.
type reporter struct {
	mu      sync.Mutex
	pending []func()
	posted  uint64
	started uint64
	fences  []fenceWait

	runners int // delivery goroutines alive
	active  int // runners currently inside a callback
}

type fenceWait struct {
	seq uint64
	ch  chan struct{}
}

// post queues fn for delivery. It never blocks.
func (r *reporter) post(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, fn)
	r.posted++
	if r.runners == r.active {
		r.spawn()
	}
}

// fence closes ch once every delivery posted so far has started.
func (r *reporter) fence(ch chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started >= r.posted {
		close(ch)
		return
	}
	r.fences = append(r.fences, fenceWait{seq: r.posted, ch: ch})
	if r.runners == r.active {
		r.spawn()
	}
}

// wait blocks until every delivery posted so far has started.
func (r *reporter) wait() {
	ch := make(chan struct{})
	r.fence(ch)
	<-ch
}

// spawn starts a delivery goroutine. r.mu must be held.
func (r *reporter) spawn() {
	r.runners++
	go r.run()
}

func (r *reporter) run() {
	r.mu.Lock()
	for len(r.pending) > 0 {
		fn := r.pending[0]
		r.pending[0] = nil
		r.pending = r.pending[1:]
		r.started++
		r.fences = slices.DeleteFunc(r.fences, func(f fenceWait) bool {
			if f.seq <= r.started {
				close(f.ch)
				return true
			}
			return false
		})
		r.active++
		r.mu.Unlock()

		fn()

		r.mu.Lock()
		r.active--
	}
	r.runners--
	r.mu.Unlock()
}
