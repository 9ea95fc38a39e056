// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"testing"

	"github.com/gogpu/forge/internal/shadertest"
	"github.com/gogpu/gputypes"
)

func TestBuilderConsumed(t *testing.T) {
	d, log := newTestDevice(t)
	b := d.CreateBufferBuilder().SetSize(16).SetAllowedUsage(BufferUsageCopyDst)
	buf, err := b.GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()

	_, err = b.GetResult()
	wantError(t, err, ErrorKindUsage, ErrBuilderConsumed)

	b.SetLabel("late")
	errs := log.all()
	if len(errs) != 2 {
		t.Fatalf("%d errors reported, want 2", len(errs))
	}
	if errs[1].Op != "SetLabel" {
		t.Errorf("second error op = %q, want SetLabel", errs[1].Op)
	}
	if got := buf.Label(); got != "" {
		t.Errorf("Label() = %q after setter on consumed builder, want empty", got)
	}
}

func TestBuilderPropertySetTwice(t *testing.T) {
	d, log := newTestDevice(t)
	b := d.CreateBufferBuilder().
		SetSize(16).
		SetSize(32).
		SetAllowedUsage(BufferUsageCopyDst)

	if got := log.len(); got != 1 {
		t.Fatalf("%d errors reported after double set, want 1", got)
	}
	_, err := b.GetResult()
	wantError(t, err, ErrorKindUsage, ErrPropertySetTwice)
	// The poisoned result is not reported a second time.
	if got := log.len(); got != 1 {
		t.Errorf("%d errors reported after GetResult, want 1", got)
	}
}

func TestBufferBuilderValidation(t *testing.T) {
	tests := []struct {
		name   string
		build  func(*BufferBuilder) *BufferBuilder
		target error
	}{
		{
			name:   "missing size",
			build:  func(b *BufferBuilder) *BufferBuilder { return b.SetAllowedUsage(BufferUsageStorage) },
			target: ErrMissingProperty,
		},
		{
			name:   "missing usage",
			build:  func(b *BufferBuilder) *BufferBuilder { return b.SetSize(16) },
			target: ErrMissingProperty,
		},
		{
			name:   "zero size",
			build:  func(b *BufferBuilder) *BufferBuilder { return b.SetSize(0).SetAllowedUsage(BufferUsageStorage) },
			target: ErrOutOfRange,
		},
		{
			name:   "empty usage",
			build:  func(b *BufferBuilder) *BufferBuilder { return b.SetSize(16).SetAllowedUsage(BufferUsageNone) },
			target: ErrInvalidUsage,
		},
		{
			name: "map read with storage",
			build: func(b *BufferBuilder) *BufferBuilder {
				return b.SetSize(16).SetAllowedUsage(BufferUsageMapRead | BufferUsageStorage)
			},
			target: ErrInvalidUsage,
		},
		{
			name: "map write with copy dst",
			build: func(b *BufferBuilder) *BufferBuilder {
				return b.SetSize(16).SetAllowedUsage(BufferUsageMapWrite | BufferUsageCopyDst)
			},
			target: ErrInvalidUsage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, log := newTestDevice(t)
			_, err := tt.build(d.CreateBufferBuilder()).GetResult()
			wantError(t, err, ErrorKindValidation, tt.target)
			if got := log.len(); got != 1 {
				t.Errorf("%d errors reported, want 1", got)
			}
		})
	}
}

func TestBufferBuilderTooLarge(t *testing.T) {
	d, _ := newTestDevice(t)
	_, err := d.CreateBufferBuilder().
		SetSize(d.Limits().MaxBufferSize + 1).
		SetAllowedUsage(BufferUsageStorage).
		GetResult()
	wantError(t, err, ErrorKindValidation, ErrOutOfRange)
}

func TestBufferViewBuilder(t *testing.T) {
	d, _ := newTestDevice(t)
	storage := mustBuffer(t, d, 1024, BufferUsageStorage)
	defer storage.Release()
	plain := mustBuffer(t, d, 1024, BufferUsageCopySrc)
	defer plain.Release()

	tests := []struct {
		name         string
		buf          *Buffer
		offset, size uint64
		target       error
	}{
		{"whole buffer", storage, 0, 1024, nil},
		{"aligned storage offset", storage, 256, 512, nil},
		{"unaligned storage offset", storage, 4, 16, ErrUnaligned},
		{"copy offset", plain, 4, 16, nil},
		{"unaligned copy offset", plain, 2, 16, ErrUnaligned},
		{"zero size", plain, 0, 0, ErrOutOfRange},
		{"past end", plain, 512, 1024, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.buf.CreateBufferViewBuilder().SetExtent(tt.offset, tt.size).GetResult()
			if tt.target != nil {
				wantError(t, err, ErrorKindValidation, tt.target)
				return
			}
			if err != nil {
				t.Fatalf("GetResult: %v", err)
			}
			defer v.Release()
			if v.Offset() != tt.offset || v.Size() != tt.size || v.Buffer() != tt.buf {
				t.Errorf("view = [%d, +%d) of %p, want [%d, +%d) of %p",
					v.Offset(), v.Size(), v.Buffer(), tt.offset, tt.size, tt.buf)
			}
		})
	}
}

func TestTextureBuilderValidation(t *testing.T) {
	tests := []struct {
		name   string
		build  func(*TextureBuilder) *TextureBuilder
		target error
	}{
		{
			name: "missing format",
			build: func(b *TextureBuilder) *TextureBuilder {
				return b.SetExtent(4, 4, 1).SetAllowedUsage(TextureUsageCopyDst)
			},
			target: ErrMissingProperty,
		},
		{
			name: "zero extent",
			build: func(b *TextureBuilder) *TextureBuilder {
				return b.SetExtent(0, 4, 1).SetFormat(gputypes.TextureFormatRGBA8Unorm).SetAllowedUsage(TextureUsageCopyDst)
			},
			target: ErrOutOfRange,
		},
		{
			name: "too many mips",
			build: func(b *TextureBuilder) *TextureBuilder {
				return b.SetExtent(4, 4, 1).SetMipLevels(4).
					SetFormat(gputypes.TextureFormatRGBA8Unorm).SetAllowedUsage(TextureUsageCopyDst)
			},
			target: ErrOutOfRange,
		},
		{
			name: "depth format",
			build: func(b *TextureBuilder) *TextureBuilder {
				return b.SetExtent(4, 4, 1).SetFormat(gputypes.TextureFormatDepth32Float).SetAllowedUsage(TextureUsageCopyDst)
			},
			target: ErrInvalidFormat,
		},
		{
			name: "1D with height",
			build: func(b *TextureBuilder) *TextureBuilder {
				return b.SetDimension(gputypes.TextureDimension1D).SetExtent(4, 2, 1).
					SetFormat(gputypes.TextureFormatR8Unorm).SetAllowedUsage(TextureUsageCopyDst)
			},
			target: ErrOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDevice(t)
			_, err := tt.build(d.CreateTextureBuilder()).GetResult()
			wantError(t, err, ErrorKindValidation, tt.target)
		})
	}
}

func TestTextureViewBuilder(t *testing.T) {
	d, _ := newTestDevice(t)
	tex, err := d.CreateTextureBuilder().
		SetExtent(8, 8, 1).
		SetMipLevels(4).
		SetFormat(gputypes.TextureFormatRGBA8Unorm).
		SetAllowedUsage(TextureUsageTextureBinding).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Release()

	v, err := tex.CreateTextureViewBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	if v.BaseMipLevel() != 0 || v.MipLevelCount() != 4 || v.Format() != tex.Format() {
		t.Errorf("default view = base %d count %d format %s", v.BaseMipLevel(), v.MipLevelCount(), v.Format())
	}
	v.Release()

	_, err = tex.CreateTextureViewBuilder().SetMipRange(3, 2).GetResult()
	wantError(t, err, ErrorKindValidation, ErrOutOfRange)

	_, err = tex.CreateTextureViewBuilder().SetFormat(gputypes.TextureFormatBGRA8Unorm).GetResult()
	wantError(t, err, ErrorKindValidation, ErrInvalidFormat)
}

func TestTextureViewBuilderArrayLayers(t *testing.T) {
	d, _ := newTestDevice(t)
	newTexture := func(dim gputypes.TextureDimension, depth uint32) *Texture {
		tex, err := d.CreateTextureBuilder().
			SetDimension(dim).
			SetExtent(4, 4, depth).
			SetFormat(gputypes.TextureFormatRGBA8Unorm).
			SetAllowedUsage(TextureUsageTextureBinding).
			GetResult()
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(tex.Release)
		return tex
	}
	array := newTexture(gputypes.TextureDimension2D, 3)
	volume := newTexture(gputypes.TextureDimension3D, 3)

	tests := []struct {
		name      string
		tex       *Texture
		layers    func(b *TextureViewBuilder) *TextureViewBuilder
		base, n   uint32
		dimension gputypes.TextureViewDimension
		target    error
	}{
		{"array default", array, nil, 0, 3, gputypes.TextureViewDimension2DArray, nil},
		{"array single layer", array, func(b *TextureViewBuilder) *TextureViewBuilder { return b.SetArrayLayers(2, 1) }, 2, 1, gputypes.TextureViewDimension2D, nil},
		{"array sub range", array, func(b *TextureViewBuilder) *TextureViewBuilder { return b.SetArrayLayers(1, 2) }, 1, 2, gputypes.TextureViewDimension2DArray, nil},
		{"array zero layers", array, func(b *TextureViewBuilder) *TextureViewBuilder { return b.SetArrayLayers(0, 0) }, 0, 0, 0, ErrOutOfRange},
		{"array past end", array, func(b *TextureViewBuilder) *TextureViewBuilder { return b.SetArrayLayers(2, 2) }, 0, 0, 0, ErrOutOfRange},
		{"volume default", volume, nil, 0, 1, gputypes.TextureViewDimension3D, nil},
		{"volume second layer", volume, func(b *TextureViewBuilder) *TextureViewBuilder { return b.SetArrayLayers(1, 1) }, 0, 0, 0, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.tex.CreateTextureViewBuilder()
			if tt.layers != nil {
				b = tt.layers(b)
			}
			v, err := b.GetResult()
			if tt.target != nil {
				wantError(t, err, ErrorKindValidation, tt.target)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer v.Release()
			if v.BaseArrayLayer() != tt.base || v.ArrayLayerCount() != tt.n || v.Dimension() != tt.dimension {
				t.Errorf("view = layers [%d, %d+%d) %s, want [%d, %d+%d) %s",
					v.BaseArrayLayer(), v.BaseArrayLayer(), v.ArrayLayerCount(), v.Dimension(),
					tt.base, tt.base, tt.n, tt.dimension)
			}
		})
	}
}

func TestShaderModuleBuilder(t *testing.T) {
	d, _ := newTestDevice(t)

	m, err := d.CreateShaderModuleBuilder().SetSPIRV(shadertest.VertexFragment("vs", "fs")).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	eps := m.EntryPoints()
	m.Release()
	if len(eps) != 2 {
		t.Fatalf("EntryPoints() = %v, want 2 entries", eps)
	}
	if eps[0].Name != "vs" || eps[0].Stage != ShaderStageVertex {
		t.Errorf("entry 0 = %+v, want vertex vs", eps[0])
	}
	if eps[1].Name != "fs" || eps[1].Stage != ShaderStageFragment {
		t.Errorf("entry 1 = %+v, want fragment fs", eps[1])
	}

	_, err = d.CreateShaderModuleBuilder().GetResult()
	wantError(t, err, ErrorKindValidation, ErrMissingProperty)

	_, err = d.CreateShaderModuleBuilder().
		SetWGSL("@compute @workgroup_size(1) fn main() {}").
		SetSPIRV(shadertest.Compute("main", 1, 1, 1)).
		GetResult()
	wantError(t, err, ErrorKindValidation, ErrMutuallyExclusive)
}

func TestComputePipelineBuilder(t *testing.T) {
	d, _ := newTestDevice(t)
	pl, err := d.CreatePipelineLayoutBuilder().GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer pl.Release()
	cs, err := d.CreateShaderModuleBuilder().SetSPIRV(shadertest.Compute("main", 8, 4, 1)).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Release()
	gfx, err := d.CreateShaderModuleBuilder().SetSPIRV(shadertest.VertexFragment("vs", "fs")).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer gfx.Release()

	p, err := d.CreateComputePipelineBuilder().SetLayout(pl).SetStage(ShaderStageCompute, cs, "main").GetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.WorkgroupSize(), [3]uint32{8, 4, 1}; got != want {
		t.Errorf("WorkgroupSize() = %v, want %v", got, want)
	}
	if p.Layout() != pl {
		t.Error("Layout() is not the builder layout")
	}
	p.Release()

	tests := []struct {
		name   string
		build  func(*ComputePipelineBuilder) *ComputePipelineBuilder
		target error
	}{
		{
			name:   "missing layout",
			build:  func(b *ComputePipelineBuilder) *ComputePipelineBuilder { return b.SetStage(ShaderStageCompute, cs, "main") },
			target: ErrMissingProperty,
		},
		{
			name:   "missing stage",
			build:  func(b *ComputePipelineBuilder) *ComputePipelineBuilder { return b.SetLayout(pl) },
			target: ErrMissingProperty,
		},
		{
			name: "unknown entry point",
			build: func(b *ComputePipelineBuilder) *ComputePipelineBuilder {
				return b.SetLayout(pl).SetStage(ShaderStageCompute, cs, "other")
			},
			target: ErrEntryPointNotFound,
		},
		{
			name: "entry point of another stage",
			build: func(b *ComputePipelineBuilder) *ComputePipelineBuilder {
				return b.SetLayout(pl).SetStage(ShaderStageCompute, gfx, "vs")
			},
			target: ErrEntryPointNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(d.CreateComputePipelineBuilder()).GetResult()
			wantError(t, err, ErrorKindValidation, tt.target)
		})
	}
}

func TestComputePipelineBuilderInvalidStage(t *testing.T) {
	d, _ := newTestDevice(t)
	gfx, err := d.CreateShaderModuleBuilder().SetSPIRV(shadertest.VertexFragment("vs", "fs")).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer gfx.Release()

	_, err = d.CreateComputePipelineBuilder().SetStage(ShaderStageVertex, gfx, "vs").GetResult()
	wantError(t, err, ErrorKindUsage, ErrInvalidStage)
}

func TestRenderPipelineBuilder(t *testing.T) {
	d, _ := newTestDevice(t)
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

	p, err := d.CreateRenderPipelineBuilder().
		SetLayout(pl).
		SetStage(ShaderStageVertex, m, "vs").
		SetStage(ShaderStageFragment, m, "fs").
		SetPrimitiveTopology(gputypes.PrimitiveTopologyTriangleList).
		SetColorTargetFormats(gputypes.TextureFormatRGBA8Unorm).
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	if got := p.ColorFormats(); len(got) != 1 || got[0] != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("ColorFormats() = %v", got)
	}
	if got := p.Topology(); got != gputypes.PrimitiveTopologyTriangleList {
		t.Errorf("Topology() = %v", got)
	}
	p.Release()

	_, err = d.CreateRenderPipelineBuilder().
		SetLayout(pl).
		SetStage(ShaderStageVertex, m, "vs").
		SetColorTargetFormats(gputypes.TextureFormatRGBA8Unorm).
		GetResult()
	wantError(t, err, ErrorKindValidation, ErrMissingProperty)
}
