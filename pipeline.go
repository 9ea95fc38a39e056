// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"
	"slices"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/mathutil"
	"github.com/gogpu/gputypes"
)

// StageBinding is a validated shader stage of a pipeline.
type StageBinding struct {
	Stage      ShaderStage
	Module     *ShaderModule
	EntryPoint string
}

// PipelineBase is the state shared by compute and render pipelines: the
// layout and the shader stages. A pipeline holds references on both, so
// they outlive it.
type PipelineBase struct {
	layout *PipelineLayout
	stages []StageBinding
}

// Layout returns the pipeline layout.
func (p *PipelineBase) Layout() *PipelineLayout { return p.layout }

// Stage returns the binding for stage, if the pipeline has one.
func (p *PipelineBase) Stage(stage ShaderStage) (StageBinding, bool) {
	for _, s := range p.stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageBinding{}, false
}

// retain takes the references a pipeline holds and returns the matching
// release function.
func (p *PipelineBase) retain() func() {
	p.layout.AddRef()
	for _, s := range p.stages {
		s.Module.AddRef()
	}
	return func() {
		for _, s := range p.stages {
			s.Module.Release()
		}
		p.layout.Release()
	}
}

// pipelineBuilder is the staging state shared by pipeline builders.
type pipelineBuilder[T any] struct {
	builder[T]
	allowed   ShaderStages
	label     string
	layout    *PipelineLayout
	stages    map[ShaderStage]StageBinding
	hasLabel  bool
	hasLayout bool
}

func newPipelineBuilder[T any](d *Device, name string, allowed ShaderStages) pipelineBuilder[T] {
	return pipelineBuilder[T]{
		builder: newBuilder[T](d, name),
		allowed: allowed,
		stages:  make(map[ShaderStage]StageBinding),
	}
}

func (b *pipelineBuilder[T]) setLabel(label string) {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
}

func (b *pipelineBuilder[T]) setLayout(layout *PipelineLayout) {
	const op = "SetLayout"
	if !b.property(op, &b.hasLayout) {
		return
	}
	if err := checkObject(b.device, baseOf(layout), "pipeline layout"); err != nil {
		b.misuse(op, err)
		return
	}
	b.layout = layout
}

func (b *pipelineBuilder[T]) setStage(stage ShaderStage, module *ShaderModule, entryPoint string) {
	const op = "SetStage"
	if !b.open(op) {
		return
	}
	if !mathutil.IsPowerOfTwo(uint32(stage)) || !b.allowed.Contains(stage) {
		b.misuse(op, fmt.Errorf("%w: %s in %s", ErrInvalidStage, stage, b.name))
		return
	}
	if err := checkObject(b.device, baseOf(module), "shader module"); err != nil {
		b.misuse(op, err)
		return
	}
	if _, dup := b.stages[stage]; dup {
		b.misuse(op, fmt.Errorf("%w: %s stage", ErrPropertySetTwice, stage))
		return
	}
	b.stages[stage] = StageBinding{Stage: stage, Module: module, EntryPoint: entryPoint}
}

// validateBase checks the layout and that each required stage is set and
// names an entry point its module exposes.
func (b *pipelineBuilder[T]) validateBase(required ...ShaderStage) ([]StageBinding, error) {
	if !b.hasLayout {
		return nil, missing("layout")
	}
	if !b.layout.alive() {
		return nil, fmt.Errorf("%w: layout was released", ErrInvalidObject)
	}
	stages := make([]StageBinding, 0, len(required))
	for _, stage := range required {
		s, ok := b.stages[stage]
		if !ok {
			return nil, missing(stage.String() + " stage")
		}
		if !s.Module.alive() {
			return nil, fmt.Errorf("%w: %s module was released", ErrInvalidObject, stage)
		}
		if _, ok := s.Module.lookup(s.EntryPoint, stage); !ok {
			return nil, fmt.Errorf("%w: %q for %s stage in module %q",
				ErrEntryPointNotFound, s.EntryPoint, stage, s.Module.label)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// ComputePipeline is an immutable compute pipeline.
type ComputePipeline struct {
	object
	PipelineBase
	id            gpucore.ComputePipelineID
	workgroupSize [3]uint32
}

// WorkgroupSize returns the local size of the compute entry point.
func (p *ComputePipeline) WorkgroupSize() [3]uint32 { return p.workgroupSize }

// ComputePipelineBuilder stages the configuration of a ComputePipeline.
// A layout and exactly one compute stage are required.
type ComputePipelineBuilder struct {
	pipelineBuilder[*ComputePipeline]
}

// CreateComputePipelineBuilder returns a builder for a new compute pipeline.
func (d *Device) CreateComputePipelineBuilder() *ComputePipelineBuilder {
	return &ComputePipelineBuilder{
		pipelineBuilder: newPipelineBuilder[*ComputePipeline](d, "ComputePipelineBuilder", ShaderStageCompute),
	}
}

// SetLabel sets the debug label.
func (b *ComputePipelineBuilder) SetLabel(label string) *ComputePipelineBuilder {
	b.setLabel(label)
	return b
}

// SetLayout sets the pipeline layout.
func (b *ComputePipelineBuilder) SetLayout(layout *PipelineLayout) *ComputePipelineBuilder {
	b.setLayout(layout)
	return b
}

// SetStage sets the compute stage. stage must be ShaderStageCompute.
func (b *ComputePipelineBuilder) SetStage(stage ShaderStage, module *ShaderModule, entryPoint string) *ComputePipelineBuilder {
	b.setStage(stage, module, entryPoint)
	return b
}

// GetResult validates the stage against the module and creates the pipeline.
func (b *ComputePipelineBuilder) GetResult() (*ComputePipeline, error) {
	var stages []StageBinding
	var size [3]uint32
	validate := func() error {
		var err error
		if stages, err = b.validateBase(ShaderStageCompute); err != nil {
			return err
		}
		ep, _ := stages[0].Module.lookup(stages[0].EntryPoint, ShaderStageCompute)
		size = ep.WorkgroupSize
		return checkWorkgroupSize(size, b.device.limits)
	}
	return b.finish(validate, func() (*ComputePipeline, error) {
		return b.create(stages[0], size)
	})
}

// checkWorkgroupSize validates a compute local size against the limits.
func checkWorkgroupSize(size [3]uint32, lim gputypes.Limits) error {
	maxSize := [3]uint32{lim.MaxComputeWorkgroupSizeX, lim.MaxComputeWorkgroupSizeY, lim.MaxComputeWorkgroupSizeZ}
	invocations := uint64(1)
	for i, n := range size {
		if n == 0 || n > maxSize[i] {
			return fmt.Errorf("%w: workgroup size %v exceeds %v", ErrOutOfRange, size, maxSize)
		}
		invocations *= uint64(n)
	}
	if invocations > uint64(lim.MaxComputeInvocationsPerWorkgroup) {
		return fmt.Errorf("%w: %d invocations per workgroup exceed %d",
			ErrOutOfRange, invocations, lim.MaxComputeInvocationsPerWorkgroup)
	}
	return nil
}

func (b *ComputePipelineBuilder) create(stage StageBinding, size [3]uint32) (*ComputePipeline, error) {
	d := b.device
	desc := &gpucore.ComputePipelineDesc{
		Label:         b.label,
		Layout:        b.layout.id,
		Module:        stage.Module.id,
		EntryPoint:    stage.EntryPoint,
		WorkgroupSize: size,
	}
	var id gpucore.ComputePipelineID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateComputePipeline(desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	p := &ComputePipeline{
		PipelineBase:  PipelineBase{layout: b.layout, stages: []StageBinding{stage}},
		id:            id,
		workgroupSize: size,
	}
	release := p.retain()
	p.setup(d, KindComputePipeline, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyComputePipeline(id) })
		release()
	})
	return p, nil
}

// VertexBufferLayout describes one vertex buffer slot of a render pipeline.
type VertexBufferLayout = gputypes.VertexBufferLayout

// RenderPipeline is an immutable render pipeline.
type RenderPipeline struct {
	object
	PipelineBase
	id            gpucore.RenderPipelineID
	topology      gputypes.PrimitiveTopology
	vertexBuffers []VertexBufferLayout
	colorFormats  []gputypes.TextureFormat
}

// Topology returns the primitive topology.
func (p *RenderPipeline) Topology() gputypes.PrimitiveTopology { return p.topology }

// VertexBufferCount returns the number of vertex buffer slots the pipeline
// reads.
func (p *RenderPipeline) VertexBufferCount() int { return len(p.vertexBuffers) }

// ColorFormats returns the color target formats.
func (p *RenderPipeline) ColorFormats() []gputypes.TextureFormat {
	return slices.Clone(p.colorFormats)
}

// RenderPipelineBuilder stages the configuration of a RenderPipeline.
// A layout, a vertex and a fragment stage and at least one color target
// format are required. The topology defaults to a triangle list.
type RenderPipelineBuilder struct {
	pipelineBuilder[*RenderPipeline]
	topology      gputypes.PrimitiveTopology
	vertexBuffers []VertexBufferLayout
	colorFormats  []gputypes.TextureFormat

	hasTopology, hasVertexBuffers, hasColorFormats bool
}

// CreateRenderPipelineBuilder returns a builder for a new render pipeline.
func (d *Device) CreateRenderPipelineBuilder() *RenderPipelineBuilder {
	return &RenderPipelineBuilder{
		pipelineBuilder: newPipelineBuilder[*RenderPipeline](d, "RenderPipelineBuilder",
			ShaderStageVertex|ShaderStageFragment),
		topology: gputypes.PrimitiveTopologyTriangleList,
	}
}

// SetLabel sets the debug label.
func (b *RenderPipelineBuilder) SetLabel(label string) *RenderPipelineBuilder {
	b.setLabel(label)
	return b
}

// SetLayout sets the pipeline layout.
func (b *RenderPipelineBuilder) SetLayout(layout *PipelineLayout) *RenderPipelineBuilder {
	b.setLayout(layout)
	return b
}

// SetStage sets the vertex or fragment stage. Each may be set once.
func (b *RenderPipelineBuilder) SetStage(stage ShaderStage, module *ShaderModule, entryPoint string) *RenderPipelineBuilder {
	b.setStage(stage, module, entryPoint)
	return b
}

// SetPrimitiveTopology sets how vertices are assembled.
func (b *RenderPipelineBuilder) SetPrimitiveTopology(t gputypes.PrimitiveTopology) *RenderPipelineBuilder {
	if b.property("SetPrimitiveTopology", &b.hasTopology) {
		b.topology = t
	}
	return b
}

// SetVertexBufferLayouts describes the vertex buffer slots, in slot order.
func (b *RenderPipelineBuilder) SetVertexBufferLayouts(layouts ...VertexBufferLayout) *RenderPipelineBuilder {
	if b.property("SetVertexBufferLayouts", &b.hasVertexBuffers) {
		b.vertexBuffers = slices.Clone(layouts)
	}
	return b
}

// SetColorTargetFormats sets the formats of the color attachments, in
// attachment order.
func (b *RenderPipelineBuilder) SetColorTargetFormats(formats ...gputypes.TextureFormat) *RenderPipelineBuilder {
	if b.property("SetColorTargetFormats", &b.hasColorFormats) {
		b.colorFormats = slices.Clone(formats)
	}
	return b
}

// GetResult validates the stages and state and creates the pipeline.
func (b *RenderPipelineBuilder) GetResult() (*RenderPipeline, error) {
	var stages []StageBinding
	validate := func() error {
		var err error
		if stages, err = b.validateBase(ShaderStageVertex, ShaderStageFragment); err != nil {
			return err
		}
		return b.validateState()
	}
	return b.finish(validate, func() (*RenderPipeline, error) {
		return b.create(stages)
	})
}

func (b *RenderPipelineBuilder) validateState() error {
	lim := b.device.limits
	if b.topology > gputypes.PrimitiveTopologyTriangleStrip {
		return fmt.Errorf("%w: primitive topology %s", ErrOutOfRange, b.topology)
	}
	if !b.hasColorFormats || len(b.colorFormats) == 0 {
		return missing("color target formats")
	}
	if len(b.colorFormats) > int(lim.MaxColorAttachments) {
		return fmt.Errorf("%w: %d color targets exceed limit %d",
			ErrOutOfRange, len(b.colorFormats), lim.MaxColorAttachments)
	}
	for _, f := range b.colorFormats {
		if _, ok := gpucore.TexelSize(f); !ok {
			return fmt.Errorf("%w: color target %s", ErrInvalidFormat, f)
		}
	}

	if len(b.vertexBuffers) > int(lim.MaxVertexBuffers) {
		return fmt.Errorf("%w: %d vertex buffers exceed limit %d",
			ErrOutOfRange, len(b.vertexBuffers), lim.MaxVertexBuffers)
	}
	attributes := 0
	for slot, vb := range b.vertexBuffers {
		if vb.ArrayStride > uint64(lim.MaxVertexBufferArrayStride) || !mathutil.IsAligned(vb.ArrayStride, copyAlignment) {
			return fmt.Errorf("%w: vertex buffer %d stride %d", ErrOutOfRange, slot, vb.ArrayStride)
		}
		for _, a := range vb.Attributes {
			end := a.Offset + a.Format.Size()
			if a.Format.Size() == 0 || (vb.ArrayStride != 0 && end > vb.ArrayStride) {
				return fmt.Errorf("%w: attribute at location %d does not fit vertex buffer %d",
					ErrOutOfRange, a.ShaderLocation, slot)
			}
		}
		attributes += len(vb.Attributes)
	}
	if attributes > int(lim.MaxVertexAttributes) {
		return fmt.Errorf("%w: %d vertex attributes exceed limit %d", ErrOutOfRange, attributes, lim.MaxVertexAttributes)
	}
	return nil
}

func (b *RenderPipelineBuilder) create(stages []StageBinding) (*RenderPipeline, error) {
	d := b.device
	vs, fs := stages[0], stages[1]
	desc := &gpucore.RenderPipelineDesc{
		Label:              b.label,
		Layout:             b.layout.id,
		VertexModule:       vs.Module.id,
		VertexEntryPoint:   vs.EntryPoint,
		VertexBuffers:      b.vertexBuffers,
		FragmentModule:     fs.Module.id,
		FragmentEntryPoint: fs.EntryPoint,
		ColorFormats:       b.colorFormats,
		Topology:           b.topology,
	}
	var id gpucore.RenderPipelineID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateRenderPipeline(desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	p := &RenderPipeline{
		PipelineBase:  PipelineBase{layout: b.layout, stages: stages},
		id:            id,
		topology:      b.topology,
		vertexBuffers: b.vertexBuffers,
		colorFormats:  b.colorFormats,
	}
	release := p.retain()
	p.setup(d, KindRenderPipeline, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyRenderPipeline(id) })
		release()
	})
	return p, nil
}
