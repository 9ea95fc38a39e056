// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Resource IDs
//
// These opaque IDs represent backend objects. Each backend maintains a
// mapping between IDs and its native resources. IDs are uint64 to
// accommodate various backend handle sizes.

// BufferID is an opaque handle to a buffer.
type BufferID uint64

// TextureID is an opaque handle to a texture.
type TextureID uint64

// TextureViewID is an opaque handle to a texture view.
type TextureViewID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a shader module.
type ShaderModuleID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// RenderPipelineID is an opaque handle to a render pipeline.
type RenderPipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BindingType specifies the kind of resource bound at a layout index.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeStorageBuffer is a read-write storage buffer binding.
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer

	// BindingTypeSampler is a sampler binding.
	BindingTypeSampler

	// BindingTypeSampledTexture is a sampled texture binding.
	BindingTypeSampledTexture
)

// String returns the binding type name.
func (t BindingType) String() string {
	switch t {
	case BindingTypeUniformBuffer:
		return "UniformBuffer"
	case BindingTypeStorageBuffer:
		return "StorageBuffer"
	case BindingTypeReadOnlyStorageBuffer:
		return "ReadOnlyStorageBuffer"
	case BindingTypeSampler:
		return "Sampler"
	case BindingTypeSampledTexture:
		return "SampledTexture"
	default:
		return fmt.Sprintf("BindingType(%d)", uint32(t))
	}
}

// Valid reports whether t is a known binding type.
func (t BindingType) Valid() bool {
	return t >= BindingTypeUniformBuffer && t <= BindingTypeSampledTexture
}

// IsBuffer reports whether t binds a buffer range.
func (t BindingType) IsBuffer() bool {
	switch t {
	case BindingTypeUniformBuffer, BindingTypeStorageBuffer, BindingTypeReadOnlyStorageBuffer:
		return true
	}
	return false
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage is the set of allowed usages.
	Usage gputypes.BufferUsage
}

// TextureDesc describes a texture.
type TextureDesc struct {
	Label         string
	Dimension     gputypes.TextureDimension
	Size          gputypes.Extent3D
	Format        gputypes.TextureFormat
	MipLevelCount uint32
	Usage         gputypes.TextureUsage
}

// TextureViewDesc describes a view over a texture's mip and array layer
// ranges. A 3D texture has one array layer.
type TextureViewDesc struct {
	Label           string
	Texture         TextureID
	Format          gputypes.TextureFormat
	Dimension       gputypes.TextureViewDimension
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// SamplerDesc describes a sampler.
type SamplerDesc struct {
	Label        string
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
}

// ShaderModuleDesc describes a shader module.
//
// SPIRV is always set. WGSL carries the original source when the module
// was written in WGSL, for backends that prefer to translate it themselves.
type ShaderModuleDesc struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Visibility is the set of stages that can access the binding.
	Visibility gputypes.ShaderStages

	// Type is the type of resource bound at this index.
	Type BindingType
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries are sorted by binding index.
	Entries []BindGroupLayoutEntry
}

// PipelineLayoutDesc describes a pipeline layout.
type PipelineLayoutDesc struct {
	Label string

	// BindGroupLayouts holds one layout per group index, without gaps.
	BindGroupLayouts []BindGroupLayoutID
}

// BindGroupEntry describes a single binding in a bind group.
// Exactly one of Buffer, TextureView and Sampler is set.
type BindGroupEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Buffer is the buffer to bind (for buffer bindings).
	Buffer BufferID

	// Offset is the offset into the buffer.
	Offset uint64

	// Size is the size of the buffer range to bind.
	Size uint64

	// TextureView is the view to bind (for texture bindings).
	TextureView TextureViewID

	// Sampler is the sampler to bind (for sampler bindings).
	Sampler SamplerID
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the bind group layout.
	Layout BindGroupLayoutID

	// Entries are the resource bindings, sorted by binding index.
	Entries []BindGroupEntry
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the pipeline layout.
	Layout PipelineLayoutID

	// Module contains the compute shader.
	Module ShaderModuleID

	// EntryPoint is the name of the shader entry point function.
	EntryPoint string

	// WorkgroupSize is the reflected local size of the entry point.
	WorkgroupSize [3]uint32
}

// RenderPipelineDesc describes a render pipeline.
type RenderPipelineDesc struct {
	Label  string
	Layout PipelineLayoutID

	VertexModule     ShaderModuleID
	VertexEntryPoint string
	VertexBuffers    []gputypes.VertexBufferLayout

	FragmentModule     ShaderModuleID
	FragmentEntryPoint string
	ColorFormats       []gputypes.TextureFormat

	Topology gputypes.PrimitiveTopology
}
