// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// === Buffers ===

// CreateBuffer creates a HAL buffer.
func (b *Backend) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create buffer: %w", translate(err))
	}
	id := gpucore.BufferID(b.newID())
	b.buffers.Put(id, &buffer{raw: raw, size: desc.Size, usage: desc.Usage})
	return id, nil
}

// DestroyBuffer releases a buffer.
func (b *Backend) DestroyBuffer(id gpucore.BufferID) {
	if buf, ok := b.buffers.Take(id); ok {
		b.device.DestroyBuffer(buf.raw)
	}
}

// WriteBuffer writes data through the HAL queue.
func (b *Backend) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	buf, err := b.buffers.Get(id)
	if err != nil {
		return err
	}
	if err := b.queue.WriteBuffer(buf.raw, offset, data); err != nil {
		return fmt.Errorf("write buffer: %w", translate(err))
	}
	return nil
}

// ReadBuffer reads back buffer contents. Mappable buffers are mapped
// directly; others are copied into a staging buffer first.
func (b *Backend) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	buf, err := b.buffers.Get(id)
	if err != nil {
		return nil, err
	}
	if buf.usage.Contains(gputypes.BufferUsageMapRead) {
		if err := b.device.WaitIdle(); err != nil {
			return nil, fmt.Errorf("read buffer: %w", translate(err))
		}
		return b.mapRead(buf.raw, offset, size)
	}

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "forge-readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", translate(err))
	}
	defer b.device.DestroyBuffer(staging)

	err = b.submit("forge-readback", func(enc hal.CommandEncoder) error {
		enc.CopyBufferToBuffer(buf.raw, staging, []hal.BufferCopy{{SrcOffset: offset, Size: size}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.mapRead(staging, 0, size)
}

func (b *Backend) mapRead(raw hal.Buffer, offset, size uint64) ([]byte, error) {
	m, err := b.device.MapBuffer(raw, offset, size)
	if err != nil {
		return nil, fmt.Errorf("map buffer: %w", translate(err))
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	if err := b.device.UnmapBuffer(raw); err != nil {
		return nil, fmt.Errorf("unmap buffer: %w", translate(err))
	}
	return out, nil
}

// === Textures and samplers ===

// CreateTexture creates a HAL texture.
func (b *Backend) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: desc.Size.DepthOrArrayLayers,
		},
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   1,
		Dimension:     desc.Dimension,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create texture: %w", translate(err))
	}
	id := gpucore.TextureID(b.newID())
	b.textures.Put(id, raw)
	return id, nil
}

// DestroyTexture releases a texture.
func (b *Backend) DestroyTexture(id gpucore.TextureID) {
	if raw, ok := b.textures.Take(id); ok {
		b.device.DestroyTexture(raw)
	}
}

// CreateTextureView creates a view over a texture's mip and layer ranges.
func (b *Backend) CreateTextureView(desc *gpucore.TextureViewDesc) (gpucore.TextureViewID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	tex, err := b.textures.Get(desc.Texture)
	if err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   desc.MipLevelCount,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create texture view: %w", translate(err))
	}
	id := gpucore.TextureViewID(b.newID())
	b.views.Put(id, raw)
	return id, nil
}

// DestroyTextureView releases a texture view.
func (b *Backend) DestroyTextureView(id gpucore.TextureViewID) {
	if raw, ok := b.views.Take(id); ok {
		b.device.DestroyTextureView(raw)
	}
}

// CreateSampler creates a sampler.
func (b *Backend) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := b.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create sampler: %w", translate(err))
	}
	id := gpucore.SamplerID(b.newID())
	b.samplers.Put(id, raw)
	return id, nil
}

// DestroySampler releases a sampler.
func (b *Backend) DestroySampler(id gpucore.SamplerID) {
	if raw, ok := b.samplers.Take(id); ok {
		b.device.DestroySampler(raw)
	}
}

// === Shaders and pipelines ===

// CreateShaderModule creates a shader module. WGSL source is preferred
// when present so HAL backends can use their own translation.
func (b *Backend) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	src := hal.ShaderSource{WGSL: desc.WGSL}
	if src.WGSL == "" {
		src.SPIRV = desc.SPIRV
	}
	raw, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Label, Source: src})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create shader module: %w", translate(err))
	}
	id := gpucore.ShaderModuleID(b.newID())
	b.modules.Put(id, raw)
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (b *Backend) DestroyShaderModule(id gpucore.ShaderModuleID) {
	if raw, ok := b.modules.Take(id); ok {
		b.device.DestroyShaderModule(raw)
	}
}

// CreateBindGroupLayout creates a bind group layout.
func (b *Backend) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = convertLayoutEntry(e)
	}
	raw, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group layout: %w", translate(err))
	}
	id := gpucore.BindGroupLayoutID(b.newID())
	b.bindGroupLayouts.Put(id, raw)
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (b *Backend) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	if raw, ok := b.bindGroupLayouts.Take(id); ok {
		b.device.DestroyBindGroupLayout(raw)
	}
}

// CreatePipelineLayout creates a pipeline layout.
func (b *Backend) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, lid := range desc.BindGroupLayouts {
		l, err := b.bindGroupLayouts.Get(lid)
		if err != nil {
			return gpucore.InvalidID, err
		}
		layouts[i] = l
	}
	raw, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: desc.Label, BindGroupLayouts: layouts})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create pipeline layout: %w", translate(err))
	}
	id := gpucore.PipelineLayoutID(b.newID())
	b.pipelineLayouts.Put(id, raw)
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (b *Backend) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	if raw, ok := b.pipelineLayouts.Take(id); ok {
		b.device.DestroyPipelineLayout(raw)
	}
}

// CreateBindGroup creates a bind group.
func (b *Backend) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	layout, err := b.bindGroupLayouts.Get(desc.Layout)
	if err != nil {
		return gpucore.InvalidID, err
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		res, err := b.bindingResource(e)
		if err != nil {
			return gpucore.InvalidID, err
		}
		entries[i] = gputypes.BindGroupEntry{Binding: e.Binding, Resource: res}
	}
	raw, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{Label: desc.Label, Layout: layout, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group: %w", translate(err))
	}
	id := gpucore.BindGroupID(b.newID())
	b.bindGroups.Put(id, raw)
	return id, nil
}

func (b *Backend) bindingResource(e gpucore.BindGroupEntry) (gputypes.BindingResource, error) {
	switch {
	case e.Buffer != gpucore.InvalidID:
		buf, err := b.buffers.Get(e.Buffer)
		if err != nil {
			return nil, err
		}
		return gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: e.Offset, Size: e.Size}, nil
	case e.TextureView != gpucore.InvalidID:
		v, err := b.views.Get(e.TextureView)
		if err != nil {
			return nil, err
		}
		return gputypes.TextureViewBinding{TextureView: v.NativeHandle()}, nil
	default:
		s, err := b.samplers.Get(e.Sampler)
		if err != nil {
			return nil, err
		}
		return gputypes.SamplerBinding{Sampler: s.NativeHandle()}, nil
	}
}

// DestroyBindGroup releases a bind group.
func (b *Backend) DestroyBindGroup(id gpucore.BindGroupID) {
	if raw, ok := b.bindGroups.Take(id); ok {
		b.device.DestroyBindGroup(raw)
	}
}

// CreateComputePipeline creates a compute pipeline.
func (b *Backend) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	layout, err := b.pipelineLayouts.Get(desc.Layout)
	if err != nil {
		return gpucore.InvalidID, err
	}
	module, err := b.modules.Get(desc.Module)
	if err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create compute pipeline: %w", translate(err))
	}
	id := gpucore.ComputePipelineID(b.newID())
	b.computePipelines.Put(id, raw)
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (b *Backend) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	if raw, ok := b.computePipelines.Take(id); ok {
		b.device.DestroyComputePipeline(raw)
	}
}

// CreateRenderPipeline creates a render pipeline without depth or
// blending.
func (b *Backend) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	layout, err := b.pipelineLayouts.Get(desc.Layout)
	if err != nil {
		return gpucore.InvalidID, err
	}
	vs, err := b.modules.Get(desc.VertexModule)
	if err != nil {
		return gpucore.InvalidID, err
	}
	fs, err := b.modules.Get(desc.FragmentModule)
	if err != nil {
		return gpucore.InvalidID, err
	}
	targets := make([]gputypes.ColorTargetState, len(desc.ColorFormats))
	for i, f := range desc.ColorFormats {
		targets[i] = gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
	}
	raw, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    targets,
		},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create render pipeline: %w", translate(err))
	}
	id := gpucore.RenderPipelineID(b.newID())
	b.renderPipelines.Put(id, raw)
	return id, nil
}

// DestroyRenderPipeline releases a render pipeline.
func (b *Backend) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	if raw, ok := b.renderPipelines.Take(id); ok {
		b.device.DestroyRenderPipeline(raw)
	}
}

// convertLayoutEntry maps a forge binding declaration to a WebGPU layout
// entry.
func convertLayoutEntry(e gpucore.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding, Visibility: e.Visibility}
	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case gpucore.BindingTypeStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case gpucore.BindingTypeSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case gpucore.BindingTypeSampledTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	}
	return out
}
