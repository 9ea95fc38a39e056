// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software implements a CPU reference backend for forge.
//
// Buffers and textures are host byte slices. Compute dispatches run Go
// kernels registered for a (shader module label, entry point) pair, one
// call per shader invocation, with workgroups spread across goroutines.
// Render passes apply their attachments' load and store operations; draws
// are accepted but rasterize nothing.
//
// Importing the package registers the backend as "software".
package software

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/idtable"
	"github.com/gogpu/gputypes"
)

// Name is the registered backend name.
const Name = "software"

func init() {
	gpucore.Register(Name, func() (gpucore.Backend, error) { return New(), nil })
}

// Option configures a Backend.
type Option func(*Backend)

// WithKernel registers a kernel for a single backend instance. It takes
// precedence over kernels registered with RegisterKernel.
func WithKernel(module, entryPoint string, k Kernel) Option {
	return func(b *Backend) {
		b.kernels[kernelKey{module, entryPoint}] = k
	}
}

// WithLimits overrides the reported device limits.
func WithLimits(limits gputypes.Limits) Option {
	return func(b *Backend) {
		b.limits = limits
	}
}

// WithWorkers caps the number of goroutines a dispatch uses.
// Values below 1 keep the default of GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.workers = n
		}
	}
}

// Backend is a gpucore.Backend running on the CPU.
//
// Backend is safe for concurrent use.
type Backend struct {
	limits  gputypes.Limits
	kernels map[kernelKey]Kernel
	workers int

	log       atomic.Pointer[slog.Logger]
	destroyed atomic.Bool
	nextID    atomic.Uint64

	// mem guards buffer and texture contents.
	mem sync.Mutex

	buffers          idtable.Table[gpucore.BufferID, []byte]
	textures         idtable.Table[gpucore.TextureID, *texture]
	views            idtable.Table[gpucore.TextureViewID, *textureView]
	samplers         idtable.Table[gpucore.SamplerID, gpucore.SamplerDesc]
	modules          idtable.Table[gpucore.ShaderModuleID, string]
	bindGroupLayouts idtable.Table[gpucore.BindGroupLayoutID, []gpucore.BindGroupLayoutEntry]
	pipelineLayouts  idtable.Table[gpucore.PipelineLayoutID, []gpucore.BindGroupLayoutID]
	bindGroups       idtable.Table[gpucore.BindGroupID, []gpucore.BindGroupEntry]
	computePipelines idtable.Table[gpucore.ComputePipelineID, *computePipeline]
	renderPipelines  idtable.Table[gpucore.RenderPipelineID, gpucore.RenderPipelineDesc]
}

// texture stores one byte slice per mip level, rows tightly packed.
type texture struct {
	desc   gpucore.TextureDesc
	texel  uint32
	levels [][]byte
}

// textureView selects one mip level and a layer range. layers is zero for
// every layer from baseLayer on.
type textureView struct {
	texture   gpucore.TextureID
	format    gputypes.TextureFormat
	baseLevel uint32
	baseLayer uint32
	layers    uint32
}

type computePipeline struct {
	name          string
	kernel        Kernel
	workgroupSize [3]uint32
}

// New creates a software backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		limits:  gputypes.DefaultLimits(),
		kernels: make(map[kernelKey]Kernel),
	}
	b.log.Store(slog.New(slog.DiscardHandler))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "software".
func (b *Backend) Name() string { return Name }

// Limits returns the device limits.
func (b *Backend) Limits() gputypes.Limits { return b.limits }

// SetLogger sets the logger used for dispatch and pass tracing.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	b.log.Store(l)
}

func (b *Backend) logger() *slog.Logger { return b.log.Load() }

// Destroy drops every object. Later calls fail with gpucore.ErrDeviceLost.
func (b *Backend) Destroy() {
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}
	b.bindGroups.Clear()
	b.computePipelines.Clear()
	b.renderPipelines.Clear()
	b.pipelineLayouts.Clear()
	b.bindGroupLayouts.Clear()
	b.modules.Clear()
	b.samplers.Clear()
	b.views.Clear()
	b.textures.Clear()
	b.buffers.Clear()
	b.logger().Debug("software: device destroyed")
}

func (b *Backend) check() error {
	if b.destroyed.Load() {
		return gpucore.ErrDeviceLost
	}
	return nil
}

func (b *Backend) newID() uint64 { return b.nextID.Add(1) }
