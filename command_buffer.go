// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/mathutil"
	"github.com/gogpu/gputypes"
)

// rowPitchAlignment is the required alignment of BytesPerRow in
// buffer/texture copies.
const rowPitchAlignment = 256

// encoderState is the recording state of a CommandBufferBuilder.
type encoderState uint8

const (
	encoderRecording encoderState = iota
	encoderComputePass
	encoderRenderPass
	encoderEnded
)

func (s encoderState) String() string {
	switch s {
	case encoderRecording:
		return "recording"
	case encoderComputePass:
		return "compute pass"
	case encoderRenderPass:
		return "render pass"
	default:
		return "ended"
	}
}

// RenderPassColorAttachment describes one color target of a render pass.
// A zero LoadOp loads the existing contents and a zero StoreOp stores.
type RenderPassColorAttachment struct {
	View          *TextureView
	ResolveTarget *TextureView
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []RenderPassColorAttachment
}

// ImageCopyBuffer is the buffer side of a buffer/texture copy.
// RowsPerImage of zero means the copy height.
type ImageCopyBuffer struct {
	Buffer       *Buffer
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// ImageCopyTexture is the texture side of a buffer/texture copy.
type ImageCopyTexture struct {
	Texture  *Texture
	MipLevel uint32
	Origin   gputypes.Origin3D
}

// CommandBufferBuilder records commands into a CommandBuffer.
//
// State machine:
//
//	Recording   -> BeginComputePass() -> ComputePass
//	Recording   -> BeginRenderPass()  -> RenderPass
//	ComputePass -> EndComputePass()   -> Recording
//	RenderPass  -> EndRenderPass()    -> Recording
//	Recording   -> GetResult()        -> Ended
//
// Copies are only valid while Recording; pipelines, bind groups, dispatches
// and draws only inside the matching pass. A bind group is checked against
// the current pipeline's layout when it is set; groups set before a
// pipeline, or kept across a pipeline change, are checked at the next
// dispatch or draw. Recording methods are chainable
// and return no error: the first usage or validation error is reported on
// the device error channel right away, later commands are ignored and
// GetResult returns that error.
//
// Every object a command refers to is kept alive from the moment it is
// recorded. GetResult hands these references to the CommandBuffer, or
// releases them when it fails; an encoder must therefore always be
// finished with GetResult.
//
// A CommandBufferBuilder must be used from a single goroutine.
type CommandBufferBuilder struct {
	builder[*CommandBuffer]
	label    string
	hasLabel bool
	state    encoderState

	commands []gpucore.Command
	refs     map[refHolder]struct{}

	pass passState
}

// passState is the state bound inside the current pass. It is reset at
// every Begin*Pass.
type passState struct {
	computePipeline *ComputePipeline
	renderPipeline  *RenderPipeline
	bindGroups      map[uint32]*BindGroupLayout
	vertexBuffers   map[uint32]struct{}

	indexBuffer *Buffer
	indexFormat gputypes.IndexFormat
	indexOffset uint64

	colorFormats []gputypes.TextureFormat
}

// CreateCommandBufferBuilder returns an encoder for a new command buffer.
func (d *Device) CreateCommandBufferBuilder() *CommandBufferBuilder {
	return &CommandBufferBuilder{
		builder: newBuilder[*CommandBuffer](d, "CommandBufferBuilder"),
		refs:    make(map[refHolder]struct{}),
	}
}

// SetLabel sets the debug label of the command buffer.
func (b *CommandBufferBuilder) SetLabel(label string) *CommandBufferBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// recording reports whether op may record a command outside a pass.
func (b *CommandBufferBuilder) recording(op string) bool {
	if !b.open(op) {
		return false
	}
	if b.state != encoderRecording {
		b.misuse(op, fmt.Errorf("%w: %s", ErrPassActive, b.state))
		return false
	}
	return true
}

// inPass reports whether op may record a command in the current pass.
// want is encoderComputePass, encoderRenderPass, or encoderRecording for
// commands valid in either pass.
func (b *CommandBufferBuilder) inPass(op string, want encoderState) bool {
	if !b.open(op) {
		return false
	}
	switch {
	case b.state == encoderRecording:
		b.misuse(op, ErrNoActivePass)
		return false
	case want != encoderRecording && b.state != want:
		b.misuse(op, fmt.Errorf("%w: %s is only valid in a %s, encoder is in a %s",
			ErrNoActivePass, op, want, b.state))
		return false
	}
	return true
}

// invalid reports a validation error and poisons the encoder.
func (b *CommandBufferBuilder) invalid(op string, err error) {
	b.poison(ErrorKindValidation, op, err)
}

// checkArg validates an object argument, reporting a usage error on failure.
func (b *CommandBufferBuilder) checkArg(op string, o *object, what string) bool {
	if err := checkObject(b.device, o, what); err != nil {
		b.misuse(op, err)
		return false
	}
	return true
}

// retain keeps h alive for the lifetime of the command buffer.
func (b *CommandBufferBuilder) retain(h refHolder) {
	if _, ok := b.refs[h]; ok {
		return
	}
	h.AddRef()
	b.refs[h] = struct{}{}
}

// adopt is retain for a reference the caller already owns.
func (b *CommandBufferBuilder) adopt(h refHolder) {
	if _, ok := b.refs[h]; ok {
		h.Release()
		return
	}
	b.refs[h] = struct{}{}
}

func (b *CommandBufferBuilder) record(c gpucore.Command) {
	b.commands = append(b.commands, c)
}

// BeginComputePass opens a compute pass.
func (b *CommandBufferBuilder) BeginComputePass() *CommandBufferBuilder {
	if !b.recording("BeginComputePass") {
		return b
	}
	b.state = encoderComputePass
	b.pass = passState{bindGroups: make(map[uint32]*BindGroupLayout)}
	b.record(gpucore.BeginComputePass{Label: b.label})
	return b
}

// EndComputePass closes the current compute pass.
func (b *CommandBufferBuilder) EndComputePass() *CommandBufferBuilder {
	if !b.inPass("EndComputePass", encoderComputePass) {
		return b
	}
	b.state = encoderRecording
	b.pass = passState{}
	b.record(gpucore.EndComputePass{})
	return b
}

// BeginRenderPass opens a render pass on the given color attachments.
// Attachments must be single-mip views of textures with RenderAttachment
// usage and must all have the same size.
func (b *CommandBufferBuilder) BeginRenderPass(desc RenderPassDescriptor) *CommandBufferBuilder {
	const op = "BeginRenderPass"
	if !b.recording(op) {
		return b
	}
	for i, a := range desc.ColorAttachments {
		if !b.checkArg(op, baseOf(a.View), fmt.Sprintf("color attachment %d", i)) {
			return b
		}
		if a.ResolveTarget != nil && !b.checkArg(op, baseOf(a.ResolveTarget), fmt.Sprintf("resolve target %d", i)) {
			return b
		}
	}
	attachments, formats, err := b.checkAttachments(desc.ColorAttachments)
	if err != nil {
		b.invalid(op, err)
		return b
	}

	for _, a := range desc.ColorAttachments {
		b.retain(a.View)
		if a.ResolveTarget != nil {
			b.retain(a.ResolveTarget)
		}
	}
	b.state = encoderRenderPass
	b.pass = passState{
		bindGroups:    make(map[uint32]*BindGroupLayout),
		vertexBuffers: make(map[uint32]struct{}),
		colorFormats:  formats,
	}
	b.record(gpucore.BeginRenderPass{Label: desc.Label, ColorAttachments: attachments})
	return b
}

func (b *CommandBufferBuilder) checkAttachments(in []RenderPassColorAttachment) ([]gpucore.ColorAttachment, []gputypes.TextureFormat, error) {
	maxAttachments := b.device.limits.MaxColorAttachments
	if len(in) == 0 || uint32(len(in)) > maxAttachments {
		return nil, nil, fmt.Errorf("%w: %d color attachments, want 1..%d", ErrOutOfRange, len(in), maxAttachments)
	}

	out := make([]gpucore.ColorAttachment, len(in))
	formats := make([]gputypes.TextureFormat, len(in))
	var size gputypes.Extent3D
	for i, a := range in {
		ext, err := attachmentExtent(a.View)
		if err != nil {
			return nil, nil, fmt.Errorf("color attachment %d: %w", i, err)
		}
		if i == 0 {
			size = ext
		} else if ext != size {
			return nil, nil, fmt.Errorf("%w: color attachment %d is %dx%d, attachment 0 is %dx%d",
				ErrAttachmentMismatch, i, ext.Width, ext.Height, size.Width, size.Height)
		}

		c := gpucore.ColorAttachment{
			View:       a.View.id,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if c.LoadOp == gputypes.LoadOpUndefined {
			c.LoadOp = gputypes.LoadOpLoad
		}
		if c.StoreOp == gputypes.StoreOpUndefined {
			c.StoreOp = gputypes.StoreOpStore
		}
		if c.LoadOp > gputypes.LoadOpClear || c.StoreOp > gputypes.StoreOpDiscard {
			return nil, nil, fmt.Errorf("%w: color attachment %d load op %s store op %s",
				ErrOutOfRange, i, c.LoadOp, c.StoreOp)
		}

		if r := a.ResolveTarget; r != nil {
			rext, err := attachmentExtent(r)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve target %d: %w", i, err)
			}
			if rext != ext || r.format != a.View.format {
				return nil, nil, fmt.Errorf("%w: resolve target %d does not match its attachment", ErrAttachmentMismatch, i)
			}
			c.ResolveTarget = r.id
		}
		out[i] = c
		formats[i] = a.View.format
	}
	return out, formats, nil
}

// attachmentExtent validates v as a render target and returns its size.
func attachmentExtent(v *TextureView) (gputypes.Extent3D, error) {
	if !v.texture.usage.Contains(TextureUsageRenderAttachment) {
		return gputypes.Extent3D{}, fmt.Errorf("%w: texture %q lacks RenderAttachment", ErrUsageMismatch, v.texture.label)
	}
	if v.mipLevels != 1 {
		return gputypes.Extent3D{}, fmt.Errorf("%w: view %q covers %d mip levels, want 1", ErrAttachmentMismatch, v.label, v.mipLevels)
	}
	if v.dimension != gputypes.TextureViewDimension2D {
		return gputypes.Extent3D{}, fmt.Errorf("%w: view %q has dimension %s, want a single 2D layer",
			ErrAttachmentMismatch, v.label, v.dimension)
	}
	ext := v.texture.mipExtent(v.baseMipLevel)
	ext.DepthOrArrayLayers = 1
	return ext, nil
}

// EndRenderPass closes the current render pass.
func (b *CommandBufferBuilder) EndRenderPass() *CommandBufferBuilder {
	if !b.inPass("EndRenderPass", encoderRenderPass) {
		return b
	}
	b.state = encoderRecording
	b.pass = passState{}
	b.record(gpucore.EndRenderPass{})
	return b
}

// SetComputePipeline sets the pipeline used by later dispatches.
func (b *CommandBufferBuilder) SetComputePipeline(p *ComputePipeline) *CommandBufferBuilder {
	const op = "SetComputePipeline"
	if !b.inPass(op, encoderComputePass) || !b.checkArg(op, baseOf(p), "compute pipeline") {
		return b
	}
	b.retain(p)
	b.pass.computePipeline = p
	b.record(gpucore.SetComputePipeline{Pipeline: p.id})
	return b
}

// SetRenderPipeline sets the pipeline used by later draws. Its color target
// formats must match the pass attachments.
func (b *CommandBufferBuilder) SetRenderPipeline(p *RenderPipeline) *CommandBufferBuilder {
	const op = "SetRenderPipeline"
	if !b.inPass(op, encoderRenderPass) || !b.checkArg(op, baseOf(p), "render pipeline") {
		return b
	}
	if !slices.Equal(p.colorFormats, b.pass.colorFormats) {
		b.invalid(op, fmt.Errorf("%w: pipeline %q targets %v, pass has %v",
			ErrAttachmentMismatch, p.label, p.colorFormats, b.pass.colorFormats))
		return b
	}
	b.retain(p)
	b.pass.renderPipeline = p
	b.record(gpucore.SetRenderPipeline{Pipeline: p.id})
	return b
}

// SetBindGroup binds g at group index for later dispatches or draws. For
// a Dynamic group the bindings current at this call are recorded.
func (b *CommandBufferBuilder) SetBindGroup(index uint32, g *BindGroup) *CommandBufferBuilder {
	const op = "SetBindGroup"
	if !b.inPass(op, encoderRecording) || !b.checkArg(op, baseOf(g), "bind group") {
		return b
	}
	if maxGroups := b.device.limits.MaxBindGroups; index >= maxGroups {
		b.invalid(op, fmt.Errorf("%w: group index %d exceeds limit %d", ErrOutOfRange, index, maxGroups))
		return b
	}
	if want := b.pass.pipelineGroup(index); want != nil && !want.CompatibleWith(g.layout) {
		b.invalid(op, fmt.Errorf("%w: bind group %q does not match group %d of the current pipeline layout",
			ErrLayoutMismatch, g.label, index))
		return b
	}
	set := g.snapshot()
	b.adopt(set)
	b.pass.bindGroups[index] = g.layout
	b.record(gpucore.SetBindGroup{Index: index, Group: set.id})
	return b
}

// pipelineGroup returns the non-empty layout the current pipeline declares
// at group index, or nil.
func (p *passState) pipelineGroup(index uint32) *BindGroupLayout {
	var layout *PipelineLayout
	switch {
	case p.computePipeline != nil:
		layout = p.computePipeline.layout
	case p.renderPipeline != nil:
		layout = p.renderPipeline.layout
	default:
		return nil
	}
	if index >= uint32(len(layout.layouts)) || len(layout.layouts[index].entries) == 0 {
		return nil
	}
	return layout.layouts[index]
}

// checkBindGroups verifies that every non-empty group of layout has a
// compatible bind group bound.
func (b *CommandBufferBuilder) checkBindGroups(layout *PipelineLayout) error {
	for i, want := range layout.layouts {
		if len(want.entries) == 0 {
			continue
		}
		got, ok := b.pass.bindGroups[uint32(i)]
		if !ok {
			return fmt.Errorf("%w: no bind group at index %d", ErrLayoutMismatch, i)
		}
		if !want.CompatibleWith(got) {
			return fmt.Errorf("%w: bind group at index %d does not match the pipeline layout", ErrLayoutMismatch, i)
		}
	}
	return nil
}

// Dispatch runs x*y*z workgroups of the current compute pipeline.
func (b *CommandBufferBuilder) Dispatch(x, y, z uint32) *CommandBufferBuilder {
	const op = "Dispatch"
	if !b.inPass(op, encoderComputePass) {
		return b
	}
	p := b.pass.computePipeline
	if p == nil {
		b.invalid(op, fmt.Errorf("%w: no compute pipeline set", ErrNoPipeline))
		return b
	}
	maxCount := b.device.limits.MaxComputeWorkgroupsPerDimension
	for _, n := range [3]uint32{x, y, z} {
		if n == 0 || n > maxCount {
			b.invalid(op, fmt.Errorf("%w: workgroup counts (%d, %d, %d), each must be in 1..%d",
				ErrOutOfRange, x, y, z, maxCount))
			return b
		}
	}
	if err := b.checkBindGroups(p.layout); err != nil {
		b.invalid(op, err)
		return b
	}
	b.record(gpucore.Dispatch{X: x, Y: y, Z: z})
	return b
}

// SetVertexBuffers binds buffers to consecutive vertex buffer slots from
// start. offsets may be nil; otherwise it must have one entry per buffer.
func (b *CommandBufferBuilder) SetVertexBuffers(start uint32, buffers []*Buffer, offsets []uint64) *CommandBufferBuilder {
	const op = "SetVertexBuffers"
	if !b.inPass(op, encoderRenderPass) {
		return b
	}
	if offsets != nil && len(offsets) != len(buffers) {
		b.misuse(op, fmt.Errorf("%w: %d buffers with %d offsets", ErrOutOfRange, len(buffers), len(offsets)))
		return b
	}
	for i, buf := range buffers {
		if !b.checkArg(op, baseOf(buf), fmt.Sprintf("vertex buffer %d", i)) {
			return b
		}
	}
	if maxSlots := uint64(b.device.limits.MaxVertexBuffers); uint64(start)+uint64(len(buffers)) > maxSlots {
		b.invalid(op, fmt.Errorf("%w: slots %d..%d exceed limit %d", ErrOutOfRange, start, int(start)+len(buffers), maxSlots))
		return b
	}
	for i, buf := range buffers {
		var offset uint64
		if offsets != nil {
			offset = offsets[i]
		}
		if !buf.usage.Contains(BufferUsageVertex) {
			b.invalid(op, fmt.Errorf("%w: buffer %q lacks Vertex", ErrUsageMismatch, buf.label))
			return b
		}
		if !mathutil.IsAligned(offset, copyAlignment) || offset > buf.size {
			b.invalid(op, fmt.Errorf("%w: vertex buffer offset %d for size %d", ErrOutOfRange, offset, buf.size))
			return b
		}
	}
	for i, buf := range buffers {
		var offset uint64
		if offsets != nil {
			offset = offsets[i]
		}
		slot := start + uint32(i)
		b.retain(buf)
		b.pass.vertexBuffers[slot] = struct{}{}
		b.record(gpucore.SetVertexBuffer{Slot: slot, Buffer: buf.id, Offset: offset})
	}
	return b
}

// SetIndexBuffer binds the index buffer used by DrawIndexed.
func (b *CommandBufferBuilder) SetIndexBuffer(buf *Buffer, format gputypes.IndexFormat, offset uint64) *CommandBufferBuilder {
	const op = "SetIndexBuffer"
	if !b.inPass(op, encoderRenderPass) || !b.checkArg(op, baseOf(buf), "index buffer") {
		return b
	}
	size := uint64(format.Size())
	switch {
	case size == 0:
		b.invalid(op, fmt.Errorf("%w: index format %s", ErrInvalidFormat, format))
		return b
	case !buf.usage.Contains(BufferUsageIndex):
		b.invalid(op, fmt.Errorf("%w: buffer %q lacks Index", ErrUsageMismatch, buf.label))
		return b
	case !mathutil.IsAligned(offset, size) || offset > buf.size:
		b.invalid(op, fmt.Errorf("%w: index buffer offset %d for format %s and size %d",
			ErrOutOfRange, offset, format, buf.size))
		return b
	}
	b.retain(buf)
	b.pass.indexBuffer = buf
	b.pass.indexFormat = format
	b.pass.indexOffset = offset
	b.record(gpucore.SetIndexBuffer{Buffer: buf.id, Format: format, Offset: offset})
	return b
}

// checkDraw validates the state shared by Draw and DrawIndexed.
func (b *CommandBufferBuilder) checkDraw() error {
	p := b.pass.renderPipeline
	if p == nil {
		return fmt.Errorf("%w: no render pipeline set", ErrNoPipeline)
	}
	if err := b.checkBindGroups(p.layout); err != nil {
		return err
	}
	for slot := range p.vertexBuffers {
		if _, ok := b.pass.vertexBuffers[uint32(slot)]; !ok {
			return fmt.Errorf("%w: no vertex buffer in slot %d", ErrLayoutMismatch, slot)
		}
	}
	return nil
}

// Draw draws vertexCount vertices of instanceCount instances.
func (b *CommandBufferBuilder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) *CommandBufferBuilder {
	const op = "Draw"
	if !b.inPass(op, encoderRenderPass) {
		return b
	}
	if err := b.checkDraw(); err != nil {
		b.invalid(op, err)
		return b
	}
	b.record(gpucore.Draw{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
	return b
}

// DrawIndexed draws indexCount indices from the bound index buffer.
func (b *CommandBufferBuilder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) *CommandBufferBuilder {
	const op = "DrawIndexed"
	if !b.inPass(op, encoderRenderPass) {
		return b
	}
	if err := b.checkDraw(); err != nil {
		b.invalid(op, err)
		return b
	}
	ib := b.pass.indexBuffer
	if ib == nil {
		b.invalid(op, fmt.Errorf("%w: no index buffer set", ErrLayoutMismatch))
		return b
	}
	stride := uint64(b.pass.indexFormat.Size())
	if end := (uint64(firstIndex) + uint64(indexCount)) * stride; end > ib.size-b.pass.indexOffset {
		b.invalid(op, fmt.Errorf("%w: indices [%d, %d) exceed index buffer %q",
			ErrOutOfRange, firstIndex, uint64(firstIndex)+uint64(indexCount), ib.label))
		return b
	}
	b.record(gpucore.DrawIndexed{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
	return b
}

// CopyBufferToBuffer copies size bytes between buffers. src needs CopySrc
// and dst CopyDst usage; offsets and size must be multiples of 4 and the
// ranges must not overlap when src and dst are the same buffer.
func (b *CommandBufferBuilder) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64) *CommandBufferBuilder {
	const op = "CopyBufferToBuffer"
	if !b.recording(op) || !b.checkArg(op, baseOf(src), "source buffer") || !b.checkArg(op, baseOf(dst), "destination buffer") {
		return b
	}
	if err := checkBufferCopy(src, srcOffset, dst, dstOffset, size); err != nil {
		b.invalid(op, err)
		return b
	}
	if size == 0 {
		return b
	}
	b.retain(src)
	b.retain(dst)
	b.record(gpucore.CopyBufferToBuffer{
		Src:       src.id,
		SrcOffset: srcOffset,
		Dst:       dst.id,
		DstOffset: dstOffset,
		Size:      size,
	})
	return b
}

func checkBufferCopy(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64) error {
	if !src.usage.Contains(BufferUsageCopySrc) {
		return fmt.Errorf("%w: source buffer %q lacks CopySrc", ErrUsageMismatch, src.label)
	}
	if !dst.usage.Contains(BufferUsageCopyDst) {
		return fmt.Errorf("%w: destination buffer %q lacks CopyDst", ErrUsageMismatch, dst.label)
	}
	if err := checkBufferRange(src.size, srcOffset, size); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := checkBufferRange(dst.size, dstOffset, size); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if src == dst && srcOffset < dstOffset+size && dstOffset < srcOffset+size {
		return fmt.Errorf("%w: [%d, %d) and [%d, %d)", ErrCopyOverlap,
			srcOffset, srcOffset+size, dstOffset, dstOffset+size)
	}
	return nil
}

// CopyBufferToTexture copies buffer rows into a texture region.
// BytesPerRow must be a multiple of 256.
func (b *CommandBufferBuilder) CopyBufferToTexture(src ImageCopyBuffer, dst ImageCopyTexture, size gputypes.Extent3D) *CommandBufferBuilder {
	const op = "CopyBufferToTexture"
	if !b.recording(op) || !b.checkArg(op, baseOf(src.Buffer), "source buffer") || !b.checkArg(op, baseOf(dst.Texture), "destination texture") {
		return b
	}
	layout, err := checkImageCopy(src, dst, size, true)
	if err != nil {
		b.invalid(op, err)
		return b
	}
	b.retain(src.Buffer)
	b.retain(dst.Texture)
	b.record(gpucore.CopyBufferToTexture{
		Src:    src.Buffer.id,
		Layout: layout,
		Dst:    gpucore.TextureLocation{Texture: dst.Texture.id, MipLevel: dst.MipLevel, Origin: dst.Origin},
		Size:   size,
	})
	return b
}

// CopyTextureToBuffer copies a texture region into buffer rows.
// BytesPerRow must be a multiple of 256.
func (b *CommandBufferBuilder) CopyTextureToBuffer(src ImageCopyTexture, dst ImageCopyBuffer, size gputypes.Extent3D) *CommandBufferBuilder {
	const op = "CopyTextureToBuffer"
	if !b.recording(op) || !b.checkArg(op, baseOf(src.Texture), "source texture") || !b.checkArg(op, baseOf(dst.Buffer), "destination buffer") {
		return b
	}
	layout, err := checkImageCopy(dst, src, size, false)
	if err != nil {
		b.invalid(op, err)
		return b
	}
	b.retain(src.Texture)
	b.retain(dst.Buffer)
	b.record(gpucore.CopyTextureToBuffer{
		Src:    gpucore.TextureLocation{Texture: src.Texture.id, MipLevel: src.MipLevel, Origin: src.Origin},
		Dst:    dst.Buffer.id,
		Layout: layout,
		Size:   size,
	})
	return b
}

// checkImageCopy validates a buffer/texture copy in either direction and
// returns the normalized buffer layout.
func checkImageCopy(buf ImageCopyBuffer, tex ImageCopyTexture, size gputypes.Extent3D, toTexture bool) (gpucore.BufferLayout, error) {
	var none gpucore.BufferLayout
	t := tex.Texture
	bufUsage, bufName := BufferUsageCopyDst, "CopyDst"
	texUsage, texName := TextureUsageCopySrc, "CopySrc"
	if toTexture {
		bufUsage, bufName = BufferUsageCopySrc, "CopySrc"
		texUsage, texName = TextureUsageCopyDst, "CopyDst"
	}
	if !buf.Buffer.usage.Contains(bufUsage) {
		return none, fmt.Errorf("%w: buffer %q lacks %s", ErrUsageMismatch, buf.Buffer.label, bufName)
	}
	if !t.usage.Contains(texUsage) {
		return none, fmt.Errorf("%w: texture %q lacks %s", ErrUsageMismatch, t.label, texName)
	}
	if tex.MipLevel >= t.mipLevels {
		return none, fmt.Errorf("%w: mip level %d of %d", ErrOutOfRange, tex.MipLevel, t.mipLevels)
	}
	ext := t.mipExtent(tex.MipLevel)
	o := tex.Origin
	if uint64(o.X)+uint64(size.Width) > uint64(ext.Width) ||
		uint64(o.Y)+uint64(size.Height) > uint64(ext.Height) ||
		uint64(o.Z)+uint64(size.DepthOrArrayLayers) > uint64(ext.DepthOrArrayLayers) {
		return none, fmt.Errorf("%w: region %v at %v exceeds mip level extent %v", ErrOutOfRange, size, o, ext)
	}
	if !mathutil.IsAligned(buf.BytesPerRow, rowPitchAlignment) {
		return none, fmt.Errorf("%w: bytes per row %d must be a multiple of %d", ErrUnaligned, buf.BytesPerRow, rowPitchAlignment)
	}
	if !mathutil.IsAligned(buf.Offset, copyAlignment) {
		return none, fmt.Errorf("%w: buffer offset %d must be a multiple of %d", ErrUnaligned, buf.Offset, copyAlignment)
	}

	texel, _ := gpucore.TexelSize(t.format)
	rows := buf.RowsPerImage
	if rows == 0 {
		rows = size.Height
	}
	rowBytes := uint64(size.Width) * uint64(texel)
	if rowBytes > uint64(buf.BytesPerRow) || rows < size.Height {
		return none, fmt.Errorf("%w: layout %d bytes x %d rows cannot hold %v texels",
			ErrOutOfRange, buf.BytesPerRow, rows, size)
	}
	if size.Width != 0 && size.Height != 0 && size.DepthOrArrayLayers != 0 {
		need := uint64(buf.BytesPerRow)*uint64(rows)*uint64(size.DepthOrArrayLayers-1) +
			uint64(buf.BytesPerRow)*uint64(size.Height-1) + rowBytes
		if need > buf.Buffer.size || buf.Offset > buf.Buffer.size-need {
			return none, fmt.Errorf("%w: copy needs %d bytes at offset %d, buffer %q has %d",
				ErrOutOfRange, need, buf.Offset, buf.Buffer.label, buf.Buffer.size)
		}
	}
	return gpucore.BufferLayout{Offset: buf.Offset, BytesPerRow: buf.BytesPerRow, RowsPerImage: rows}, nil
}

// GetResult ends recording and returns the command buffer. It fails when a
// pass is still open or when an earlier command failed.
func (b *CommandBufferBuilder) GetResult() (*CommandBuffer, error) {
	first := !b.consumed
	cb, err := b.finish(b.validate, b.create)
	if first {
		b.state = encoderEnded
		if err != nil {
			b.releaseRefs()
		}
	}
	return cb, err
}

func (b *CommandBufferBuilder) validate() error {
	if b.state != encoderRecording {
		return fmt.Errorf("%w: %s still open", ErrPassActive, b.state)
	}
	return nil
}

func (b *CommandBufferBuilder) create() (*CommandBuffer, error) {
	refs := b.refs
	b.refs = nil
	cb := &CommandBuffer{
		stream: gpucore.CommandStream{Label: b.label, Commands: b.commands},
	}
	b.commands = nil
	cb.setup(b.device, KindCommandBuffer, b.label, func() {
		for h := range refs {
			h.Release()
		}
	})
	return cb, nil
}

func (b *CommandBufferBuilder) releaseRefs() {
	for h := range b.refs {
		h.Release()
	}
	b.refs = nil
	b.commands = nil
}

// CommandBuffer is an immutable, recorded list of commands. It can be
// submitted to the device's queue once.
type CommandBuffer struct {
	object
	stream    gpucore.CommandStream
	submitted atomic.Bool
}

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int { return len(cb.stream.Commands) }

// Submitted reports whether the command buffer has been submitted.
func (cb *CommandBuffer) Submitted() bool { return cb.submitted.Load() }
