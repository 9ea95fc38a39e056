// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package idtable maps backend object IDs to native objects.
package idtable

import (
	"fmt"
	"sync"

	"github.com/gogpu/forge/gpucore"
)

// Table maps gpucore IDs to backend objects. The zero value is ready to use
// and a Table is safe for concurrent use.
type Table[ID ~uint64, R any] struct {
	mu sync.RWMutex
	m  map[ID]R
}

// Put stores r under id.
func (t *Table[ID, R]) Put(id ID, r R) {
	t.mu.Lock()
	if t.m == nil {
		t.m = make(map[ID]R)
	}
	t.m[id] = r
	t.mu.Unlock()
}

// Get returns the object for id, or an error wrapping gpucore.ErrUnknownID.
func (t *Table[ID, R]) Get(id ID) (R, error) {
	t.mu.RLock()
	r, ok := t.m[id]
	t.mu.RUnlock()
	if !ok {
		return r, fmt.Errorf("%w: %d", gpucore.ErrUnknownID, id)
	}
	return r, nil
}

// Take removes id and returns its object.
func (t *Table[ID, R]) Take(id ID) (R, bool) {
	t.mu.Lock()
	r, ok := t.m[id]
	delete(t.m, id)
	t.mu.Unlock()
	return r, ok
}

// Drain removes every entry, calling destroy on each.
func (t *Table[ID, R]) Drain(destroy func(R)) {
	t.mu.Lock()
	m := t.m
	t.m = nil
	t.mu.Unlock()
	for _, r := range m {
		destroy(r)
	}
}

// Clear removes every entry.
func (t *Table[ID, R]) Clear() {
	t.mu.Lock()
	t.m = nil
	t.mu.Unlock()
}

// Len returns the number of live entries.
func (t *Table[ID, R]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
