// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "github.com/gogpu/gputypes"

// CommandStream is an ordered, already validated list of commands.
//
// Streams are produced by the frontend encoder only after every pass is
// balanced, every draw and dispatch has a compatible pipeline and bind
// groups, and every copy is in bounds. Backends translate the stream
// without re-validating it.
type CommandStream struct {
	// Label is the debug label of the command buffer.
	Label string

	// Commands in recording order.
	Commands []Command
}

// Command is one recorded operation. The concrete types are the structs
// in this file; backends dispatch on them with a type switch.
type Command interface {
	command()
}

// BeginComputePass opens a compute pass.
type BeginComputePass struct {
	Label string
}

// EndComputePass closes the open compute pass.
type EndComputePass struct{}

// ColorAttachment is one render target of a render pass.
type ColorAttachment struct {
	View          TextureViewID
	ResolveTarget TextureViewID
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// BeginRenderPass opens a render pass.
type BeginRenderPass struct {
	Label            string
	ColorAttachments []ColorAttachment
}

// EndRenderPass closes the open render pass.
type EndRenderPass struct{}

// SetComputePipeline selects the compute pipeline for later dispatches.
type SetComputePipeline struct {
	Pipeline ComputePipelineID
}

// SetRenderPipeline selects the render pipeline for later draws.
type SetRenderPipeline struct {
	Pipeline RenderPipelineID
}

// SetBindGroup binds a group at Index for the open pass.
type SetBindGroup struct {
	Index uint32
	Group BindGroupID
}

// SetVertexBuffer binds a vertex buffer slot.
type SetVertexBuffer struct {
	Slot   uint32
	Buffer BufferID
	Offset uint64
}

// SetIndexBuffer binds the index buffer.
type SetIndexBuffer struct {
	Buffer BufferID
	Format gputypes.IndexFormat
	Offset uint64
}

// Dispatch runs X*Y*Z workgroups of the current compute pipeline.
type Dispatch struct {
	X, Y, Z uint32
}

// Draw issues a non-indexed draw.
type Draw struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// DrawIndexed issues an indexed draw.
type DrawIndexed struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// CopyBufferToBuffer copies Size bytes between two buffers.
type CopyBufferToBuffer struct {
	Src       BufferID
	SrcOffset uint64
	Dst       BufferID
	DstOffset uint64
	Size      uint64
}

// BufferLayout describes texel rows stored in a buffer.
type BufferLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// TextureLocation addresses a mip level and origin within a texture.
type TextureLocation struct {
	Texture  TextureID
	MipLevel uint32
	Origin   gputypes.Origin3D
}

// CopyBufferToTexture uploads texel rows from a buffer.
type CopyBufferToTexture struct {
	Src    BufferID
	Layout BufferLayout
	Dst    TextureLocation
	Size   gputypes.Extent3D
}

// CopyTextureToBuffer reads texel rows back into a buffer.
type CopyTextureToBuffer struct {
	Src    TextureLocation
	Dst    BufferID
	Layout BufferLayout
	Size   gputypes.Extent3D
}

func (BeginComputePass) command()    {}
func (EndComputePass) command()      {}
func (BeginRenderPass) command()     {}
func (EndRenderPass) command()       {}
func (SetComputePipeline) command()  {}
func (SetRenderPipeline) command()   {}
func (SetBindGroup) command()        {}
func (SetVertexBuffer) command()     {}
func (SetIndexBuffer) command()      {}
func (Dispatch) command()            {}
func (Draw) command()                {}
func (DrawIndexed) command()         {}
func (CopyBufferToBuffer) command()  {}
func (CopyBufferToTexture) command() {}
func (CopyTextureToBuffer) command() {}
