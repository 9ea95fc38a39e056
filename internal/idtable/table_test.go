// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package idtable

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/forge/gpucore"
)

func TestTable(t *testing.T) {
	var tab Table[gpucore.BufferID, string]

	if _, err := tab.Get(1); !errors.Is(err, gpucore.ErrUnknownID) {
		t.Fatalf("Get on empty table: got %v, want ErrUnknownID", err)
	}

	tab.Put(1, "a")
	tab.Put(2, "b")
	if got, err := tab.Get(2); err != nil || got != "b" {
		t.Errorf("Get(2) = %q, %v; want b, nil", got, err)
	}
	if tab.Len() != 2 {
		t.Errorf("Len = %d, want 2", tab.Len())
	}

	if r, ok := tab.Take(1); !ok || r != "a" {
		t.Errorf("Take(1) = %q, %v; want a, true", r, ok)
	}
	if _, ok := tab.Take(1); ok {
		t.Error("second Take(1) should report false")
	}

	var drained []string
	tab.Drain(func(s string) { drained = append(drained, s) })
	if len(drained) != 1 || drained[0] != "b" {
		t.Errorf("Drain visited %v, want [b]", drained)
	}
	if tab.Len() != 0 {
		t.Errorf("Len after Drain = %d, want 0", tab.Len())
	}

	tab.Put(3, "c")
	tab.Clear()
	if _, err := tab.Get(3); !errors.Is(err, gpucore.ErrUnknownID) {
		t.Errorf("Get after Clear: got %v, want ErrUnknownID", err)
	}
}

func TestTableConcurrent(t *testing.T) {
	var tab Table[gpucore.TextureID, int]
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				id := gpucore.TextureID(i*100 + j + 1)
				tab.Put(id, j)
				if _, err := tab.Get(id); err != nil {
					t.Error(err)
				}
				tab.Take(id)
			}
		}()
	}
	wg.Wait()
	if tab.Len() != 0 {
		t.Errorf("Len = %d, want 0", tab.Len())
	}
}
