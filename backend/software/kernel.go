// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"math"
	"sync"
)

// Kernel runs one shader invocation. Kernels of the same dispatch run
// concurrently across workgroups and must not write overlapping bytes.
type Kernel func(inv *Invocation)

type kernelKey struct {
	module     string
	entryPoint string
}

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[kernelKey]Kernel)
)

// RegisterKernel registers k for every software backend. module is the
// shader module label and entryPoint the compute entry point name.
// Registering the same pair again replaces the kernel.
func RegisterKernel(module, entryPoint string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[kernelKey{module, entryPoint}] = k
}

// UnregisterKernel removes a kernel registered with RegisterKernel.
func UnregisterKernel(module, entryPoint string) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	delete(kernels, kernelKey{module, entryPoint})
}

// kernel resolves the kernel for a pipeline, preferring instance kernels.
func (b *Backend) kernel(module, entryPoint string) Kernel {
	key := kernelKey{module, entryPoint}
	if k, ok := b.kernels[key]; ok {
		return k
	}
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	return kernels[key]
}

// Invocation describes one shader invocation and gives access to the bound
// buffers.
type Invocation struct {
	// GlobalID is WorkgroupID*WorkgroupSize + LocalID.
	GlobalID [3]uint32

	// LocalID is the index within the workgroup.
	LocalID [3]uint32

	// WorkgroupID is the index of the workgroup within the dispatch.
	WorkgroupID [3]uint32

	// NumWorkgroups is the dispatch size.
	NumWorkgroups [3]uint32

	// WorkgroupSize is the pipeline's local size.
	WorkgroupSize [3]uint32

	bindings map[bindingKey][]byte
}

type bindingKey struct{ group, binding uint32 }

// Index returns the linearized global invocation index.
func (inv *Invocation) Index() uint32 {
	w := inv.NumWorkgroups[0] * inv.WorkgroupSize[0]
	h := inv.NumWorkgroups[1] * inv.WorkgroupSize[1]
	return inv.GlobalID[0] + inv.GlobalID[1]*w + inv.GlobalID[2]*w*h
}

// Buffer returns the bytes bound at (group, binding), or nil when that slot
// is not a buffer binding.
func (inv *Invocation) Buffer(group, binding uint32) []byte {
	return inv.bindings[bindingKey{group, binding}]
}

// Len returns the number of 32-bit words bound at (group, binding).
func (inv *Invocation) Len(group, binding uint32) uint32 {
	return uint32(len(inv.Buffer(group, binding)) / 4)
}

// Uint32 loads the little-endian word at index i. It panics when i is out
// of range.
func (inv *Invocation) Uint32(group, binding, i uint32) uint32 {
	return binary.LittleEndian.Uint32(inv.Buffer(group, binding)[4*i:])
}

// SetUint32 stores v at word index i.
func (inv *Invocation) SetUint32(group, binding, i, v uint32) {
	binary.LittleEndian.PutUint32(inv.Buffer(group, binding)[4*i:], v)
}

// Float32 loads the float at word index i.
func (inv *Invocation) Float32(group, binding, i uint32) float32 {
	return math.Float32frombits(inv.Uint32(group, binding, i))
}

// SetFloat32 stores v at word index i.
func (inv *Invocation) SetFloat32(group, binding, i uint32, v float32) {
	inv.SetUint32(group, binding, i, math.Float32bits(v))
}
