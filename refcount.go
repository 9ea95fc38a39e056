// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "sync/atomic"

// RefCounted is the manual reference count embedded in every forge object.
//
// An object starts with one reference held by its creator. AddRef and
// Release may be called from any goroutine. The object is destroyed exactly
// once, on the Release that brings the count to zero: its backend object is
// destroyed and the references it holds on other objects are released.
//
// Calling Release more times than there are outstanding references, or
// AddRef on an object that has already been destroyed, is a programming
// error and panics.
type RefCounted struct {
	refs    atomic.Int32
	destroy func()
}

// init sets the initial reference and the destroy hook.
func (r *RefCounted) init(destroy func()) {
	r.destroy = destroy
	r.refs.Store(1)
}

// AddRef takes an additional reference.
func (r *RefCounted) AddRef() {
	if r.refs.Add(1) <= 1 {
		panic("forge: AddRef on a destroyed object")
	}
}

// Release drops a reference and destroys the object when it was the last.
func (r *RefCounted) Release() {
	n := r.refs.Add(-1)
	switch {
	case n == 0:
		if r.destroy != nil {
			r.destroy()
		}
	case n < 0:
		panic("forge: Release called more times than AddRef")
	}
}

// RefCount returns the current number of references.
// A destroyed object reports zero.
func (r *RefCounted) RefCount() int32 {
	return r.refs.Load()
}

// alive reports whether the object has not been destroyed yet.
func (r *RefCounted) alive() bool {
	return r.refs.Load() > 0
}

// refHolder is implemented by every object a command buffer or bind group
// can keep alive.
type refHolder interface {
	AddRef()
	Release()
}
