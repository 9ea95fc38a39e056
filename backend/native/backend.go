// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package native implements the forge backend on top of the gogpu/wgpu
// hardware abstraction layer (Vulkan, Metal, DX12, GLES and noop).
//
// Importing the package registers two backends: "native", which opens the
// best HAL backend available, and "noop", which opens the HAL noop device
// and is useful in tests.
package native

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/idtable"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Backend errors.
var (
	// ErrNoAdapter is returned when a HAL instance exposes no adapter.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrNotHAL is returned when a device provider does not expose HAL
	// device and queue handles.
	ErrNotHAL = errors.New("native: provider does not expose HAL types")
)

func init() {
	gpucore.Register("native", func() (gpucore.Backend, error) { return OpenBest() })
	gpucore.Register("noop", func() (gpucore.Backend, error) { return OpenNoop() })
}

// Backend is a gpucore.Backend driving a hal.Device.
//
// Backend is safe for concurrent use.
type Backend struct {
	name   string
	device hal.Device
	queue  hal.Queue
	limits gputypes.Limits

	// instance is set when the backend opened the device itself and
	// must tear it down in Destroy.
	instance hal.Instance

	log       atomic.Pointer[slog.Logger]
	destroyed atomic.Bool
	nextID    atomic.Uint64

	buffers          idtable.Table[gpucore.BufferID, *buffer]
	textures         idtable.Table[gpucore.TextureID, hal.Texture]
	views            idtable.Table[gpucore.TextureViewID, hal.TextureView]
	samplers         idtable.Table[gpucore.SamplerID, hal.Sampler]
	modules          idtable.Table[gpucore.ShaderModuleID, hal.ShaderModule]
	bindGroupLayouts idtable.Table[gpucore.BindGroupLayoutID, hal.BindGroupLayout]
	pipelineLayouts  idtable.Table[gpucore.PipelineLayoutID, hal.PipelineLayout]
	bindGroups       idtable.Table[gpucore.BindGroupID, hal.BindGroup]
	computePipelines idtable.Table[gpucore.ComputePipelineID, hal.ComputePipeline]
	renderPipelines  idtable.Table[gpucore.RenderPipelineID, hal.RenderPipeline]
}

// buffer is a HAL buffer with the metadata readback needs.
type buffer struct {
	raw   hal.Buffer
	size  uint64
	usage gputypes.BufferUsage
}

// New wraps an already opened HAL device. The caller keeps ownership of
// the device: Destroy releases the backend's objects but not the device.
func New(name string, device hal.Device, queue hal.Queue, limits gputypes.Limits) *Backend {
	b := &Backend{
		name:   name,
		device: device,
		queue:  queue,
		limits: limits,
	}
	b.log.Store(slog.New(slog.DiscardHandler))
	return b
}

// NewFromProvider wraps the HAL device of a host application, such as a
// gogpu window. The provider, its device or its queue must expose the HAL
// handles through HalDevice() and HalQueue().
func NewFromProvider(p gpucontext.DeviceProvider) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	device, queue, ok := halHandles(p)
	if !ok {
		if hp, isHP := p.Device().(halProvider); isHP {
			device, queue, ok = halHandles(hp)
		}
	}
	if !ok {
		return nil, ErrNotHAL
	}
	name := "native"
	if info := p.AdapterInfo(); info.Name != "" {
		name = "native (" + info.Name + ")"
	}
	return New(name, device, queue, gputypes.DefaultLimits()), nil
}

// halHandles extracts HAL device and queue handles from v.
func halHandles(v any) (hal.Device, hal.Queue, bool) {
	hp, ok := v.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, nil, false
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, false
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, false
	}
	return device, queue, true
}

// Open opens the first adapter of a specific HAL backend variant.
func Open(variant gputypes.Backend) (*Backend, error) {
	api, ok := hal.GetBackend(variant)
	if !ok {
		var err error
		if api, err = hal.CreateBackend(variant); err != nil {
			return nil, fmt.Errorf("native: %s: %w", variant, err)
		}
	}
	return openAPI(api)
}

// OpenBest opens the best HAL backend compiled into the program, in the
// order Vulkan, Metal, DX12, GL, noop.
func OpenBest() (*Backend, error) {
	api, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("native: %w", err)
	}
	return openAPI(api)
}

// OpenNoop opens the HAL noop device. Buffers keep their contents, but
// commands are not executed.
func OpenNoop() (*Backend, error) {
	return openAPI(noop.API{})
}

func openAPI(api hal.Backend) (*Backend, error) {
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if t := adapters[i].Info.DeviceType; t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	limits := selected.Capabilities.Limits
	open, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	b := New(api.Variant().String(), open.Device, open.Queue, limits)
	b.instance = instance
	b.logger().Info("native: device opened",
		"backend", b.name,
		"adapter", selected.Info.Name,
		"driver", selected.Info.Driver)
	return b, nil
}

// Name returns the HAL backend variant name.
func (b *Backend) Name() string { return b.name }

// Limits returns the limits the device was opened with.
func (b *Backend) Limits() gputypes.Limits { return b.limits }

// SetLogger sets the logger for the backend and for the HAL layer.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	b.log.Store(l)
	hal.SetLogger(l)
}

func (b *Backend) logger() *slog.Logger { return b.log.Load() }

// Destroy waits for the device to go idle and destroys every object still
// alive. The HAL device is destroyed only when the backend opened it.
func (b *Backend) Destroy() {
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}
	if err := b.device.WaitIdle(); err != nil {
		b.logger().Warn("native: wait idle on destroy", "err", err)
	}

	b.bindGroups.Drain(b.device.DestroyBindGroup)
	b.computePipelines.Drain(b.device.DestroyComputePipeline)
	b.renderPipelines.Drain(b.device.DestroyRenderPipeline)
	b.pipelineLayouts.Drain(b.device.DestroyPipelineLayout)
	b.bindGroupLayouts.Drain(b.device.DestroyBindGroupLayout)
	b.modules.Drain(b.device.DestroyShaderModule)
	b.samplers.Drain(b.device.DestroySampler)
	b.views.Drain(b.device.DestroyTextureView)
	b.textures.Drain(b.device.DestroyTexture)
	b.buffers.Drain(func(buf *buffer) { b.device.DestroyBuffer(buf.raw) })

	if b.instance != nil {
		b.device.Destroy()
		b.instance.Destroy()
	}
	b.logger().Info("native: device destroyed", "backend", b.name)
}

// check returns gpucore.ErrDeviceLost after Destroy.
func (b *Backend) check() error {
	if b.destroyed.Load() {
		return gpucore.ErrDeviceLost
	}
	return nil
}

// newID returns a fresh non-zero object ID.
func (b *Backend) newID() uint64 {
	return b.nextID.Add(1)
}

// translate maps HAL errors onto gpucore errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, err)
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("%w: %w", gpucore.ErrOutOfMemory, err)
	}
	return err
}
