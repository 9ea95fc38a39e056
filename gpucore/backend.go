// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Backend errors.
var (
	// ErrUnknownID is returned when an ID does not name a live object.
	ErrUnknownID = errors.New("gpucore: unknown resource id")

	// ErrUnsupported is returned for operations a backend cannot perform.
	ErrUnsupported = errors.New("gpucore: operation not supported by backend")

	// ErrDeviceLost is returned once the native device is gone. Every
	// later call on the backend fails.
	ErrDeviceLost = errors.New("gpucore: device lost")

	// ErrOutOfMemory is returned when an allocation cannot be satisfied.
	ErrOutOfMemory = errors.New("gpucore: out of memory")
)

// Backend is the dispatch boundary between the validating frontend and a
// native implementation.
//
// The frontend calls Create* exactly once per successfully validated
// object and Destroy* exactly once when the object's last reference is
// released. Descriptors and command streams handed to a backend are
// already validated: backends translate, they do not re-check binding
// compatibility.
//
// Implementations must be safe for concurrent use. Execute is only ever
// called from the queue goroutine, one stream at a time.
type Backend interface {
	// Name returns the backend identifier (e.g., "software", "vulkan").
	Name() string

	// Limits returns the capability limits of the device.
	Limits() gputypes.Limits

	// === Buffers ===

	CreateBuffer(desc *BufferDesc) (BufferID, error)
	DestroyBuffer(id BufferID)

	// WriteBuffer copies data into the buffer at offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer returns a copy of size bytes at offset.
	// This may cause a GPU-CPU synchronization stall.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Textures and samplers ===

	CreateTexture(desc *TextureDesc) (TextureID, error)
	DestroyTexture(id TextureID)
	CreateTextureView(desc *TextureViewDesc) (TextureViewID, error)
	DestroyTextureView(id TextureViewID)
	CreateSampler(desc *SamplerDesc) (SamplerID, error)
	DestroySampler(id SamplerID)

	// === Shaders and pipelines ===

	CreateShaderModule(desc *ShaderModuleDesc) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)
	DestroyBindGroupLayout(id BindGroupLayoutID)
	CreatePipelineLayout(desc *PipelineLayoutDesc) (PipelineLayoutID, error)
	DestroyPipelineLayout(id PipelineLayoutID)
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)
	DestroyBindGroup(id BindGroupID)
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)
	DestroyComputePipeline(id ComputePipelineID)
	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipelineID, error)
	DestroyRenderPipeline(id RenderPipelineID)

	// === Execution ===

	// Execute runs a command stream to completion.
	Execute(stream *CommandStream) error

	// Destroy releases the device. The backend must not be used afterwards.
	Destroy()
}
