// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gogpu/forge/internal/shadertest"
	"github.com/gogpu/gputypes"
)

func TestEncoderStateErrors(t *testing.T) {
	tests := []struct {
		name   string
		record func(*CommandBufferBuilder) *CommandBufferBuilder
		kind   ErrorKind
		target error
	}{
		{
			name:   "dispatch outside pass",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder { return b.Dispatch(1, 1, 1) },
			kind:   ErrorKindUsage,
			target: ErrNoActivePass,
		},
		{
			name: "end pass never begun",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.EndComputePass()
			},
			kind:   ErrorKindUsage,
			target: ErrNoActivePass,
		},
		{
			name: "nested pass",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.BeginComputePass().BeginComputePass()
			},
			kind:   ErrorKindUsage,
			target: ErrPassActive,
		},
		{
			name: "draw in compute pass",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.BeginComputePass().Draw(3, 1, 0, 0)
			},
			kind:   ErrorKindUsage,
			target: ErrNoActivePass,
		},
		{
			name: "dispatch without pipeline",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.BeginComputePass().Dispatch(1, 1, 1).EndComputePass()
			},
			kind:   ErrorKindValidation,
			target: ErrNoPipeline,
		},
		{
			name: "open pass at GetResult",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.BeginComputePass()
			},
			kind:   ErrorKindValidation,
			target: ErrPassActive,
		},
		{
			name: "copy inside pass",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.BeginComputePass().CopyBufferToBuffer(nil, 0, nil, 0, 4)
			},
			kind:   ErrorKindUsage,
			target: ErrPassActive,
		},
		{
			name: "copy with nil buffer",
			record: func(b *CommandBufferBuilder) *CommandBufferBuilder {
				return b.CopyBufferToBuffer(nil, 0, nil, 0, 4)
			},
			kind:   ErrorKindUsage,
			target: ErrInvalidObject,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, log := newTestDevice(t)
			_, err := tt.record(d.CreateCommandBufferBuilder()).GetResult()
			wantError(t, err, tt.kind, tt.target)
			if got := log.len(); got != 1 {
				t.Errorf("%d errors reported, want 1", got)
			}
		})
	}
}

func TestEncoderIgnoresCommandsAfterError(t *testing.T) {
	d, log := newTestDevice(t)
	enc := d.CreateCommandBufferBuilder().
		Dispatch(1, 1, 1).
		BeginComputePass().
		EndComputePass()
	if got := log.len(); got != 1 {
		t.Fatalf("%d errors reported, want 1", got)
	}
	_, err := enc.GetResult()
	wantError(t, err, ErrorKindUsage, ErrNoActivePass)

	_, err = enc.GetResult()
	wantError(t, err, ErrorKindUsage, ErrBuilderConsumed)
	enc.BeginComputePass()
	if got := log.len(); got != 3 {
		t.Errorf("%d errors reported, want 3", got)
	}
}

func TestEncoderDispatchChecks(t *testing.T) {
	d, _ := newTestDevice(t)
	fx := newComputeFixture(t, d, 64)
	buf := mustBuffer(t, d, 512, BufferUsageStorage)
	defer buf.Release()
	a := mustView(t, buf, 0, 256)
	defer a.Release()
	b := mustView(t, buf, 256, 256)
	defer b.Release()
	group, err := d.CreateBindGroupBuilder().
		SetLayout(fx.layout).
		SetUsage(BindGroupUsageFrozen).
		SetBufferViews(0, a, b).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer group.Release()

	maxCount := d.Limits().MaxComputeWorkgroupsPerDimension
	tests := []struct {
		name    string
		bind    bool
		x, y, z uint32
		target  error
	}{
		{"valid", true, 4, 1, 1, nil},
		{"no bind group", false, 1, 1, 1, ErrLayoutMismatch},
		{"zero count", true, 0, 1, 1, ErrOutOfRange},
		{"over limit", true, 1, maxCount + 1, 1, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := d.CreateCommandBufferBuilder().BeginComputePass().SetComputePipeline(fx.pipeline)
			if tt.bind {
				enc.SetBindGroup(0, group)
			}
			cb, err := enc.Dispatch(tt.x, tt.y, tt.z).EndComputePass().GetResult()
			if tt.target != nil {
				wantError(t, err, ErrorKindValidation, tt.target)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer cb.Release()
			// Begin, pipeline, bind group, dispatch, end.
			if got := cb.Len(); got != 5 {
				t.Errorf("Len() = %d, want 5", got)
			}
		})
	}
}

func TestEncoderSetBindGroupIndexLimit(t *testing.T) {
	d, _ := newTestDevice(t)
	layout := storageLayout(t, d, 1)
	defer layout.Release()
	buf := mustBuffer(t, d, 256, BufferUsageStorage)
	defer buf.Release()
	v := mustView(t, buf, 0, 256)
	defer v.Release()
	g, err := d.CreateBindGroupBuilder().SetLayout(layout).SetUsage(BindGroupUsageFrozen).SetBufferViews(0, v).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()

	_, err = d.CreateCommandBufferBuilder().
		BeginComputePass().
		SetBindGroup(d.Limits().MaxBindGroups, g).
		EndComputePass().
		GetResult()
	wantError(t, err, ErrorKindValidation, ErrOutOfRange)
}

func TestEncoderSetBindGroupLayoutCheck(t *testing.T) {
	d, _ := newTestDevice(t)
	fx := newComputeFixture(t, d, 1)
	layout := storageLayout(t, d, 1)
	defer layout.Release()
	buf := mustBuffer(t, d, 256, BufferUsageStorage)
	defer buf.Release()
	v := mustView(t, buf, 0, 256)
	defer v.Release()
	other, err := d.CreateBindGroupBuilder().SetLayout(layout).SetUsage(BindGroupUsageFrozen).SetBufferViews(0, v).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer other.Release()

	tests := []struct {
		name   string
		record func(enc *CommandBufferBuilder) *CommandBufferBuilder
		target error
	}{
		{
			name: "mismatch after pipeline",
			record: func(enc *CommandBufferBuilder) *CommandBufferBuilder {
				return enc.SetComputePipeline(fx.pipeline).SetBindGroup(0, other)
			},
			target: ErrLayoutMismatch,
		},
		{
			name: "mismatch before pipeline is checked at dispatch",
			record: func(enc *CommandBufferBuilder) *CommandBufferBuilder {
				return enc.SetBindGroup(0, other).SetComputePipeline(fx.pipeline).Dispatch(1, 1, 1)
			},
			target: ErrLayoutMismatch,
		},
		{
			name: "before pipeline without dispatch",
			record: func(enc *CommandBufferBuilder) *CommandBufferBuilder {
				return enc.SetBindGroup(0, other).SetComputePipeline(fx.pipeline)
			},
		},
		{
			name: "index unused by pipeline",
			record: func(enc *CommandBufferBuilder) *CommandBufferBuilder {
				return enc.SetComputePipeline(fx.pipeline).SetBindGroup(1, other)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.record(d.CreateCommandBufferBuilder().BeginComputePass())
			cb, err := enc.EndComputePass().GetResult()
			if tt.target != nil {
				wantError(t, err, ErrorKindValidation, tt.target)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			cb.Release()
		})
	}
}

func TestEncoderCopyBufferToBufferChecks(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 64, BufferUsageCopySrc|BufferUsageCopyDst)
	defer src.Release()
	dst := mustBuffer(t, d, 64, BufferUsageCopyDst)
	defer dst.Release()

	tests := []struct {
		name           string
		src            *Buffer
		srcOff, dstOff uint64
		dst            *Buffer
		size           uint64
		target         error
	}{
		{"valid", src, 0, 0, dst, 64, nil},
		{"zero size", src, 0, 0, dst, 0, nil},
		{"source lacks CopySrc", dst, 0, 0, src, 16, ErrUsageMismatch},
		{"unaligned", src, 2, 0, dst, 16, ErrUnaligned},
		{"past end", src, 32, 0, dst, 64, ErrOutOfRange},
		{"overlap", src, 0, 8, src, 16, ErrCopyOverlap},
		{"disjoint same buffer", src, 0, 32, src, 32, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := d.CreateCommandBufferBuilder().
				CopyBufferToBuffer(tt.src, tt.srcOff, tt.dst, tt.dstOff, tt.size).
				GetResult()
			if tt.target != nil {
				wantError(t, err, ErrorKindValidation, tt.target)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			cb.Release()
		})
	}
}

func TestEncoderKeepsReferences(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)

	enc := d.CreateCommandBufferBuilder().CopyBufferToBuffer(src, 0, dst, 0, 16)
	src.Release()
	dst.Release()
	assertStats(t, d, map[ObjectKind]int{KindBuffer: 2})

	cb, err := enc.GetResult()
	if err != nil {
		t.Fatal(err)
	}
	assertStats(t, d, map[ObjectKind]int{KindBuffer: 2, KindCommandBuffer: 1})
	cb.Release()
	assertStats(t, d, map[ObjectKind]int{})
}

func TestEncoderFailureReleasesReferences(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)

	enc := d.CreateCommandBufferBuilder().
		CopyBufferToBuffer(src, 0, dst, 0, 16).
		BeginComputePass()
	src.Release()
	dst.Release()
	if _, err := enc.GetResult(); err == nil {
		t.Fatal("GetResult with an open pass succeeded")
	}
	assertStats(t, d, map[ObjectKind]int{})
}

// renderTarget is a single-level RGBA8 texture usable as an attachment and
// copy source.
func renderTarget(t *testing.T, d *Device, w, h uint32) (*Texture, *TextureView) {
	t.Helper()
	tex, err := d.CreateTextureBuilder().
		SetExtent(w, h, 1).
		SetFormat(gputypes.TextureFormatRGBA8Unorm).
		SetAllowedUsage(TextureUsageRenderAttachment | TextureUsageCopySrc | TextureUsageCopyDst).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	view, err := tex.CreateTextureViewBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	return tex, view
}

// layeredTarget is an RGBA8 render target with depth layers or slices.
func layeredTarget(t *testing.T, d *Device, dim gputypes.TextureDimension, w, h, depth uint32) *Texture {
	t.Helper()
	tex, err := d.CreateTextureBuilder().
		SetDimension(dim).
		SetExtent(w, h, depth).
		SetFormat(gputypes.TextureFormatRGBA8Unorm).
		SetAllowedUsage(TextureUsageRenderAttachment | TextureUsageCopySrc | TextureUsageCopyDst).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	return tex
}

func TestEncoderRenderPassChecks(t *testing.T) {
	d, _ := newTestDevice(t)
	tex4, view4 := renderTarget(t, d, 4, 4)
	defer tex4.Release()
	defer view4.Release()
	tex8, view8 := renderTarget(t, d, 8, 8)
	defer tex8.Release()
	defer view8.Release()

	sampled, err := d.CreateTextureBuilder().
		SetExtent(4, 4, 1).
		SetFormat(gputypes.TextureFormatRGBA8Unorm).
		SetAllowedUsage(TextureUsageTextureBinding).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer sampled.Release()
	sampledView, err := sampled.CreateTextureViewBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer sampledView.Release()

	array := layeredTarget(t, d, gputypes.TextureDimension2D, 4, 4, 2)
	defer array.Release()
	arrayView, err := array.CreateTextureViewBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer arrayView.Release()
	volume := layeredTarget(t, d, gputypes.TextureDimension3D, 4, 4, 2)
	defer volume.Release()
	volumeView, err := volume.CreateTextureViewBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer volumeView.Release()

	tests := []struct {
		name   string
		desc   RenderPassDescriptor
		target error
	}{
		{
			name:   "no attachments",
			desc:   RenderPassDescriptor{},
			target: ErrOutOfRange,
		},
		{
			name: "size mismatch",
			desc: RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{
				{View: view4}, {View: view8},
			}},
			target: ErrAttachmentMismatch,
		},
		{
			name: "not renderable",
			desc: RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{
				{View: sampledView},
			}},
			target: ErrUsageMismatch,
		},
		{
			name: "resolve size mismatch",
			desc: RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{
				{View: view4, ResolveTarget: view8},
			}},
			target: ErrAttachmentMismatch,
		},
		{
			name: "array view",
			desc: RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{
				{View: arrayView},
			}},
			target: ErrAttachmentMismatch,
		},
		{
			name: "3D view",
			desc: RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{
				{View: volumeView},
			}},
			target: ErrAttachmentMismatch,
		},
		{
			name: "array resolve target",
			desc: RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{
				{View: view4, ResolveTarget: arrayView},
			}},
			target: ErrAttachmentMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateCommandBufferBuilder().BeginRenderPass(tt.desc).EndRenderPass().GetResult()
			wantError(t, err, ErrorKindValidation, tt.target)
		})
	}
}

func TestEncoderRenderPipelineFormats(t *testing.T) {
	d, _ := newTestDevice(t)
	tex, view := renderTarget(t, d, 4, 4)
	defer tex.Release()
	defer view.Release()

	pl, err := d.CreatePipelineLayoutBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer pl.Release()
	m, err := d.CreateShaderModuleBuilder().SetSPIRV(shadertest.VertexFragment("vs", "fs")).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()
	pipeline := func(format gputypes.TextureFormat) *RenderPipeline {
		p, err := d.CreateRenderPipelineBuilder().
			SetLayout(pl).
			SetStage(ShaderStageVertex, m, "vs").
			SetStage(ShaderStageFragment, m, "fs").
			SetColorTargetFormats(format).
			GetResult()
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	match := pipeline(gputypes.TextureFormatRGBA8Unorm)
	defer match.Release()
	mismatch := pipeline(gputypes.TextureFormatBGRA8Unorm)
	defer mismatch.Release()

	pass := RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{{View: view}}}
	cb, err := d.CreateCommandBufferBuilder().
		BeginRenderPass(pass).
		SetRenderPipeline(match).
		Draw(3, 1, 0, 0).
		EndRenderPass().
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatal(err)
	}
	cb.Release()

	_, err = d.CreateCommandBufferBuilder().
		BeginRenderPass(pass).
		SetRenderPipeline(mismatch).
		EndRenderPass().
		GetResult()
	wantError(t, err, ErrorKindValidation, ErrAttachmentMismatch)

	_, err = d.CreateCommandBufferBuilder().
		BeginRenderPass(pass).
		Draw(3, 1, 0, 0).
		EndRenderPass().
		GetResult()
	wantError(t, err, ErrorKindValidation, ErrNoPipeline)
}

func TestRenderPassClear(t *testing.T) {
	d, log := newTestDevice(t)
	tex, view := renderTarget(t, d, 4, 2)
	defer tex.Release()
	defer view.Release()
	readback := mustBuffer(t, d, 512, BufferUsageCopyDst|BufferUsageCopySrc)
	defer readback.Release()

	cb, err := d.CreateCommandBufferBuilder().
		BeginRenderPass(RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			ClearValue: gputypes.Color{R: 1, G: 0, B: 1, A: 1},
		}}}).
		EndRenderPass().
		CopyTextureToBuffer(
			ImageCopyTexture{Texture: tex},
			ImageCopyBuffer{Buffer: readback, BytesPerRow: 256},
			gputypes.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 1}).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatal(err)
	}
	cb.Release()

	got, err := readback.GetSubData(0, 512)
	if err != nil {
		t.Fatal(err)
	}
	texel := []byte{255, 0, 255, 255}
	for row := range 2 {
		line := got[row*256 : row*256+16]
		if !bytes.Equal(line, bytes.Repeat(texel, 4)) {
			t.Errorf("row %d = %v, want %v x4", row, line, texel)
		}
	}
	if errs := log.all(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

// Clearing a single-layer view of an array texture leaves the other layers
// untouched.
func TestRenderPassClearArrayLayer(t *testing.T) {
	d, log := newTestDevice(t)
	tex := layeredTarget(t, d, gputypes.TextureDimension2D, 4, 1, 2)
	defer tex.Release()
	zeros := mustBuffer(t, d, 512, BufferUsageCopySrc)
	defer zeros.Release()
	readback := mustBuffer(t, d, 512, BufferUsageCopyDst|BufferUsageCopySrc)
	defer readback.Release()
	texel := []byte{255, 0, 255, 255}
	extent := gputypes.Extent3D{Width: 4, Height: 1, DepthOrArrayLayers: 2}
	layout := ImageCopyBuffer{BytesPerRow: 256, RowsPerImage: 1}
	zeroLayout, readLayout := layout, layout
	zeroLayout.Buffer, readLayout.Buffer = zeros, readback

	for layer := range uint32(2) {
		t.Run(fmt.Sprintf("layer %d", layer), func(t *testing.T) {
			view, err := tex.CreateTextureViewBuilder().SetArrayLayers(layer, 1).GetResult()
			if err != nil {
				t.Fatal(err)
			}
			defer view.Release()
			if got := view.Dimension(); got != gputypes.TextureViewDimension2D {
				t.Fatalf("view dimension = %s, want 2D", got)
			}

			cb, err := d.CreateCommandBufferBuilder().
				CopyBufferToTexture(zeroLayout, ImageCopyTexture{Texture: tex}, extent).
				BeginRenderPass(RenderPassDescriptor{ColorAttachments: []RenderPassColorAttachment{{
					View:       view,
					LoadOp:     gputypes.LoadOpClear,
					ClearValue: gputypes.Color{R: 1, G: 0, B: 1, A: 1},
				}}}).
				EndRenderPass().
				CopyTextureToBuffer(ImageCopyTexture{Texture: tex}, readLayout, extent).
				GetResult()
			if err != nil {
				t.Fatal(err)
			}
			if err := d.Queue().Submit(cb); err != nil {
				t.Fatal(err)
			}
			cb.Release()

			got, err := readback.GetSubData(0, 512)
			if err != nil {
				t.Fatal(err)
			}
			for l := range uint32(2) {
				want := make([]byte, 16)
				if l == layer {
					want = bytes.Repeat(texel, 4)
				}
				if line := got[l*256 : l*256+16]; !bytes.Equal(line, want) {
					t.Errorf("layer %d = %v, want %v", l, line, want)
				}
			}
		})
	}
	if errs := log.all(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestTextureCopyRoundTrip(t *testing.T) {
	d, _ := newTestDevice(t)
	tex, view := renderTarget(t, d, 4, 4)
	view.Release()
	defer tex.Release()

	upload := mustBuffer(t, d, 512, BufferUsageCopySrc|BufferUsageCopyDst)
	defer upload.Release()
	readback := mustBuffer(t, d, 512, BufferUsageCopyDst|BufferUsageCopySrc)
	defer readback.Release()

	data := make([]byte, 512)
	for i := range 8 {
		data[i] = byte(i + 1)
		data[256+i] = byte(i + 101)
	}
	if err := upload.SetSubData(0, data); err != nil {
		t.Fatal(err)
	}

	region := gputypes.Extent3D{Width: 2, Height: 2, DepthOrArrayLayers: 1}
	origin := gputypes.Origin3D{X: 1, Y: 2}
	cb, err := d.CreateCommandBufferBuilder().
		CopyBufferToTexture(ImageCopyBuffer{Buffer: upload, BytesPerRow: 256}, ImageCopyTexture{Texture: tex, Origin: origin}, region).
		CopyTextureToBuffer(ImageCopyTexture{Texture: tex, Origin: origin}, ImageCopyBuffer{Buffer: readback, BytesPerRow: 256}, region).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatal(err)
	}
	cb.Release()

	got, err := readback.GetSubData(0, 512)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:8], data[:8]) || !bytes.Equal(got[256:264], data[256:264]) {
		t.Errorf("round trip rows = %v / %v, want %v / %v", got[:8], got[256:264], data[:8], data[256:264])
	}
}

func TestImageCopyChecks(t *testing.T) {
	d, _ := newTestDevice(t)
	tex, view := renderTarget(t, d, 4, 4)
	view.Release()
	defer tex.Release()
	buf := mustBuffer(t, d, 1024, BufferUsageCopySrc)
	defer buf.Release()

	tests := []struct {
		name   string
		src    ImageCopyBuffer
		dst    ImageCopyTexture
		size   gputypes.Extent3D
		target error
	}{
		{
			name:   "row pitch",
			src:    ImageCopyBuffer{Buffer: buf, BytesPerRow: 16},
			dst:    ImageCopyTexture{Texture: tex},
			size:   gputypes.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
			target: ErrUnaligned,
		},
		{
			name:   "region past edge",
			src:    ImageCopyBuffer{Buffer: buf, BytesPerRow: 256},
			dst:    ImageCopyTexture{Texture: tex, Origin: gputypes.Origin3D{X: 2}},
			size:   gputypes.Extent3D{Width: 4, Height: 1, DepthOrArrayLayers: 1},
			target: ErrOutOfRange,
		},
		{
			name:   "mip level",
			src:    ImageCopyBuffer{Buffer: buf, BytesPerRow: 256},
			dst:    ImageCopyTexture{Texture: tex, MipLevel: 1},
			size:   gputypes.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
			target: ErrOutOfRange,
		},
		{
			name:   "buffer too small",
			src:    ImageCopyBuffer{Buffer: buf, BytesPerRow: 256, Offset: 512},
			dst:    ImageCopyTexture{Texture: tex},
			size:   gputypes.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
			target: ErrOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateCommandBufferBuilder().CopyBufferToTexture(tt.src, tt.dst, tt.size).GetResult()
			wantError(t, err, ErrorKindValidation, tt.target)
		})
	}
}
