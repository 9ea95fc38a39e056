// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/forge/gpucore"
)

// Queue executes submitted command buffers in submission order.
//
// Work runs on a single worker goroutine owned by the queue. Buffer writes
// and reads go through the same worker, so they are ordered with respect to
// submitted command buffers. Queue methods are safe for concurrent use.
//
// Errors raised by executing work are never delivered on the worker, so the
// device error callback may use the queue.
type Queue struct {
	device  *Device
	ops     chan queueOp
	wg      sync.WaitGroup
	reports reporter

	// mu guards closed and sends on ops against close.
	mu     sync.RWMutex
	closed bool
}

// queueOp is one unit of queue work. run is nil for fences.
type queueOp struct {
	run  func(b gpucore.Backend) error
	done func(err error)
}

func newQueue(d *Device, depth int) *Queue {
	q := &Queue{
		device: d,
		ops:    make(chan queueOp, depth),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for op := range q.ops {
		var err error
		if op.run != nil {
			err = q.device.withBackend(op.run)
		}
		if op.done != nil {
			op.done(err)
		}
	}
}

// enqueue appends ops to the queue. It blocks while the queue is full and
// reports false when the queue has been closed.
func (q *Queue) enqueue(ops ...queueOp) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	for _, op := range ops {
		q.ops <- op
	}
	return true
}

// close stops accepting work and waits for everything already queued and
// for its errors to be handed to the error callback.
func (q *Queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ops)
	q.mu.Unlock()
	q.wg.Wait()
	q.reports.wait()
}

// do runs fn on the worker after all previously queued work and waits for
// it. Failures are reported on the device error channel.
func (q *Queue) do(object, op string, fn func(b gpucore.Backend) error) error {
	d := q.device
	if kind, err := d.usable(); err != nil {
		return d.fail(kind, object, op, err)
	}
	errc := make(chan error, 1)
	if !q.enqueue(queueOp{run: fn, done: func(err error) { errc <- err }}) {
		return d.fail(ErrorKindUsage, object, op, ErrDeviceClosed)
	}
	if err := <-errc; err != nil {
		kind := ErrorKindBackend
		if errors.Is(err, ErrDeviceClosed) {
			kind = ErrorKindUsage
		}
		return d.fail(kind, object, op, err)
	}
	return nil
}

// Submit schedules command buffers for execution in order and returns
// without waiting for them.
//
// Every command buffer must be valid, created on the queue's device and not
// submitted before; a command buffer appearing twice in one call counts as
// submitted twice. When any check fails nothing is submitted. The queue
// keeps each command buffer alive until it has executed, so callers may
// Release right after Submit.
func (q *Queue) Submit(cbs ...*CommandBuffer) error {
	const op = "Submit"
	d := q.device
	seen := make(map[*CommandBuffer]struct{}, len(cbs))
	for i, cb := range cbs {
		if err := checkObject(d, baseOf(cb), fmt.Sprintf("command buffer %d", i)); err != nil {
			return d.fail(ErrorKindUsage, "Queue", op, err)
		}
		if _, dup := seen[cb]; dup || cb.submitted.Load() {
			return d.fail(ErrorKindUsage, "Queue", op,
				fmt.Errorf("%w: command buffer %q", ErrAlreadySubmitted, cb.label))
		}
		seen[cb] = struct{}{}
	}
	if len(cbs) == 0 {
		return nil
	}
	if kind, err := d.usable(); err != nil {
		return d.fail(kind, "Queue", op, err)
	}

	for i, cb := range cbs {
		if !cb.submitted.CompareAndSwap(false, true) {
			for _, prev := range cbs[:i] {
				prev.submitted.Store(false)
			}
			return d.fail(ErrorKindUsage, "Queue", op,
				fmt.Errorf("%w: command buffer %q", ErrAlreadySubmitted, cb.label))
		}
	}

	ops := make([]queueOp, len(cbs))
	for i, cb := range cbs {
		cb.AddRef()
		ops[i] = queueOp{
			run: func(b gpucore.Backend) error {
				Logger().Debug("forge: execute", "commandBuffer", cb.label, "commands", len(cb.stream.Commands))
				return b.Execute(&cb.stream)
			},
			done: func(err error) {
				if err != nil {
					e := &Error{Kind: ErrorKindBackend, Object: "Queue", Op: op,
						Err: fmt.Errorf("command buffer %q: %w", cb.label, err)}
					d.noteLost(e)
					q.reports.post(func() { d.deliver(e) })
				}
				cb.Release()
			},
		}
	}
	if !q.enqueue(ops...) {
		for _, cb := range cbs {
			cb.submitted.Store(false)
			cb.Release()
		}
		return d.fail(ErrorKindUsage, "Queue", op, ErrDeviceClosed)
	}
	return nil
}

// OnSubmittedWorkDone returns a channel that is closed once all work
// submitted before the call has executed and its errors have been handed to
// the error callback. On a closed device the channel is already closed.
func (q *Queue) OnSubmittedWorkDone() <-chan struct{} {
	ch := make(chan struct{})
	if !q.enqueue(queueOp{done: func(error) { q.reports.fence(ch) }}) {
		close(ch)
	}
	return ch
}

// WaitIdle blocks until all work submitted before the call has executed or
// ctx is done. Submitted work is never cancelled.
func (q *Queue) WaitIdle(ctx context.Context) error {
	select {
	case <-q.OnSubmittedWorkDone():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
