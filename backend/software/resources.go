// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"slices"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/forge/internal/shader"
)

// CreateBuffer allocates zeroed host memory.
func (b *Backend) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc.Size > b.limits.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer of %d bytes", gpucore.ErrOutOfMemory, desc.Size)
	}
	id := gpucore.BufferID(b.newID())
	b.buffers.Put(id, make([]byte, desc.Size))
	return id, nil
}

// DestroyBuffer frees a buffer.
func (b *Backend) DestroyBuffer(id gpucore.BufferID) { b.buffers.Take(id) }

// WriteBuffer copies data into the buffer.
func (b *Backend) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	buf, err := b.buffers.Get(id)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("software: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(buf))
	}
	b.mem.Lock()
	copy(buf[offset:], data)
	b.mem.Unlock()
	return nil
}

// ReadBuffer returns a copy of the buffer range.
func (b *Backend) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	buf, err := b.buffers.Get(id)
	if err != nil {
		return nil, err
	}
	if offset+size > uint64(len(buf)) {
		return nil, fmt.Errorf("software: read of %d bytes at %d overflows buffer of %d", size, offset, len(buf))
	}
	b.mem.Lock()
	defer b.mem.Unlock()
	return slices.Clone(buf[offset : offset+size]), nil
}

// CreateTexture allocates every mip level.
func (b *Backend) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	texel, ok := gpucore.TexelSize(desc.Format)
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: format %s", gpucore.ErrUnsupported, desc.Format)
	}
	t := &texture{desc: *desc, texel: texel, levels: make([][]byte, desc.MipLevelCount)}
	for level := range t.levels {
		e := gpucore.MipExtent(desc.Size, desc.Dimension, uint32(level))
		t.levels[level] = make([]byte, uint64(e.Width)*uint64(e.Height)*uint64(e.DepthOrArrayLayers)*uint64(texel))
	}
	id := gpucore.TextureID(b.newID())
	b.textures.Put(id, t)
	return id, nil
}

// DestroyTexture frees a texture.
func (b *Backend) DestroyTexture(id gpucore.TextureID) { b.textures.Take(id) }

// CreateTextureView records the view's base level and layer range.
func (b *Backend) CreateTextureView(desc *gpucore.TextureViewDesc) (gpucore.TextureViewID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	t, err := b.textures.Get(desc.Texture)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if desc.BaseMipLevel >= uint32(len(t.levels)) {
		return gpucore.InvalidID, fmt.Errorf("software: mip level %d of %d", desc.BaseMipLevel, len(t.levels))
	}
	if t.desc.Dimension != gputypes.TextureDimension3D {
		n := t.desc.Size.DepthOrArrayLayers
		if desc.BaseArrayLayer >= n || desc.ArrayLayerCount > n-desc.BaseArrayLayer {
			return gpucore.InvalidID, fmt.Errorf("software: array layers [%d, %d+%d) of %d",
				desc.BaseArrayLayer, desc.BaseArrayLayer, desc.ArrayLayerCount, n)
		}
	}
	id := gpucore.TextureViewID(b.newID())
	b.views.Put(id, &textureView{
		texture:   desc.Texture,
		format:    desc.Format,
		baseLevel: desc.BaseMipLevel,
		baseLayer: desc.BaseArrayLayer,
		layers:    desc.ArrayLayerCount,
	})
	return id, nil
}

// DestroyTextureView frees a texture view.
func (b *Backend) DestroyTextureView(id gpucore.TextureViewID) { b.views.Take(id) }

// CreateSampler stores the sampler state. Nothing samples it.
func (b *Backend) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.SamplerID(b.newID())
	b.samplers.Put(id, *desc)
	return id, nil
}

// DestroySampler frees a sampler.
func (b *Backend) DestroySampler(id gpucore.SamplerID) { b.samplers.Take(id) }

// CreateShaderModule checks that the SPIR-V parses and keeps the module
// label for kernel lookup.
func (b *Backend) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if _, err := shader.Reflect(desc.SPIRV); err != nil {
		return gpucore.InvalidID, fmt.Errorf("software: %w", err)
	}
	id := gpucore.ShaderModuleID(b.newID())
	b.modules.Put(id, desc.Label)
	return id, nil
}

// DestroyShaderModule frees a shader module.
func (b *Backend) DestroyShaderModule(id gpucore.ShaderModuleID) { b.modules.Take(id) }

// CreateBindGroupLayout stores the layout entries.
func (b *Backend) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BindGroupLayoutID(b.newID())
	b.bindGroupLayouts.Put(id, slices.Clone(desc.Entries))
	return id, nil
}

// DestroyBindGroupLayout frees a bind group layout.
func (b *Backend) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) { b.bindGroupLayouts.Take(id) }

// CreatePipelineLayout stores the group layouts.
func (b *Backend) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	for _, l := range desc.BindGroupLayouts {
		if _, err := b.bindGroupLayouts.Get(l); err != nil {
			return gpucore.InvalidID, err
		}
	}
	id := gpucore.PipelineLayoutID(b.newID())
	b.pipelineLayouts.Put(id, slices.Clone(desc.BindGroupLayouts))
	return id, nil
}

// DestroyPipelineLayout frees a pipeline layout.
func (b *Backend) DestroyPipelineLayout(id gpucore.PipelineLayoutID) { b.pipelineLayouts.Take(id) }

// CreateBindGroup stores the bound resources.
func (b *Backend) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	for _, e := range desc.Entries {
		if e.Buffer == gpucore.InvalidID {
			continue
		}
		buf, err := b.buffers.Get(e.Buffer)
		if err != nil {
			return gpucore.InvalidID, err
		}
		if e.Offset+e.Size > uint64(len(buf)) {
			return gpucore.InvalidID, fmt.Errorf("software: binding %d range overflows buffer", e.Binding)
		}
	}
	id := gpucore.BindGroupID(b.newID())
	b.bindGroups.Put(id, slices.Clone(desc.Entries))
	return id, nil
}

// DestroyBindGroup frees a bind group.
func (b *Backend) DestroyBindGroup(id gpucore.BindGroupID) { b.bindGroups.Take(id) }

// CreateComputePipeline resolves the pipeline's kernel. A pipeline without
// a kernel can be created but fails when dispatched.
func (b *Backend) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	module, err := b.modules.Get(desc.Module)
	if err != nil {
		return gpucore.InvalidID, err
	}
	p := &computePipeline{
		name:          module + "/" + desc.EntryPoint,
		kernel:        b.kernel(module, desc.EntryPoint),
		workgroupSize: desc.WorkgroupSize,
	}
	for i, n := range p.workgroupSize {
		if n == 0 {
			p.workgroupSize[i] = 1
		}
	}
	if p.kernel == nil {
		b.logger().Debug("software: no kernel registered", "pipeline", p.name)
	}
	id := gpucore.ComputePipelineID(b.newID())
	b.computePipelines.Put(id, p)
	return id, nil
}

// DestroyComputePipeline frees a compute pipeline.
func (b *Backend) DestroyComputePipeline(id gpucore.ComputePipelineID) { b.computePipelines.Take(id) }

// CreateRenderPipeline stores the pipeline state.
func (b *Backend) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if err := b.check(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.RenderPipelineID(b.newID())
	b.renderPipelines.Put(id, *desc)
	return id, nil
}

// DestroyRenderPipeline frees a render pipeline.
func (b *Backend) DestroyRenderPipeline(id gpucore.RenderPipelineID) { b.renderPipelines.Take(id) }
