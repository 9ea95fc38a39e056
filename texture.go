// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/mathutil"
	"github.com/gogpu/gputypes"
)

// TextureUsage is the set of operations a texture allows.
type TextureUsage = gputypes.TextureUsage

// Texture usage flags.
const (
	TextureUsageNone             TextureUsage = 0
	TextureUsageCopySrc                       = gputypes.TextureUsageCopySrc
	TextureUsageCopyDst                       = gputypes.TextureUsageCopyDst
	TextureUsageTextureBinding                = gputypes.TextureUsageTextureBinding
	TextureUsageStorageBinding                = gputypes.TextureUsageStorageBinding
	TextureUsageRenderAttachment              = gputypes.TextureUsageRenderAttachment
)

// Texture is an image with one or more mip levels.
type Texture struct {
	object
	id        gpucore.TextureID
	dimension gputypes.TextureDimension
	size      gputypes.Extent3D
	format    gputypes.TextureFormat
	mipLevels uint32
	usage     TextureUsage
}

// Dimension returns the texture dimension.
func (t *Texture) Dimension() gputypes.TextureDimension { return t.dimension }

// Size returns the extent of mip level 0.
func (t *Texture) Size() gputypes.Extent3D { return t.size }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// MipLevelCount returns the number of mip levels.
func (t *Texture) MipLevelCount() uint32 { return t.mipLevels }

// Usage returns the allowed usage flags.
func (t *Texture) Usage() TextureUsage { return t.usage }

// mipExtent returns the extent of a mip level.
func (t *Texture) mipExtent(level uint32) gputypes.Extent3D {
	return gpucore.MipExtent(t.size, t.dimension, level)
}

// TextureBuilder stages the configuration of a Texture.
// The dimension defaults to 2D and the mip level count to 1.
type TextureBuilder struct {
	builder[*Texture]
	label     string
	dimension gputypes.TextureDimension
	size      gputypes.Extent3D
	format    gputypes.TextureFormat
	mipLevels uint32
	usage     TextureUsage

	hasLabel, hasDimension, hasExtent, hasFormat, hasMipLevels, hasUsage bool
}

// CreateTextureBuilder returns a builder for a new texture.
// Extent, format and allowed usage are required.
func (d *Device) CreateTextureBuilder() *TextureBuilder {
	return &TextureBuilder{
		builder:   newBuilder[*Texture](d, "TextureBuilder"),
		dimension: gputypes.TextureDimension2D,
		mipLevels: 1,
	}
}

// SetLabel sets the debug label.
func (b *TextureBuilder) SetLabel(label string) *TextureBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetDimension sets the texture dimension.
func (b *TextureBuilder) SetDimension(dim gputypes.TextureDimension) *TextureBuilder {
	if b.property("SetDimension", &b.hasDimension) {
		b.dimension = dim
	}
	return b
}

// SetExtent sets the size of mip level 0. depth is the depth of a 3D
// texture or the layer count of a 2D array.
func (b *TextureBuilder) SetExtent(width, height, depth uint32) *TextureBuilder {
	if b.property("SetExtent", &b.hasExtent) {
		b.size = gputypes.Extent3D{Width: width, Height: height, DepthOrArrayLayers: depth}
	}
	return b
}

// SetFormat sets the texel format.
func (b *TextureBuilder) SetFormat(format gputypes.TextureFormat) *TextureBuilder {
	if b.property("SetFormat", &b.hasFormat) {
		b.format = format
	}
	return b
}

// SetMipLevels sets the number of mip levels.
func (b *TextureBuilder) SetMipLevels(n uint32) *TextureBuilder {
	if b.property("SetMipLevels", &b.hasMipLevels) {
		b.mipLevels = n
	}
	return b
}

// SetAllowedUsage sets the operations the texture allows.
func (b *TextureBuilder) SetAllowedUsage(usage TextureUsage) *TextureBuilder {
	if b.property("SetAllowedUsage", &b.hasUsage) {
		b.usage = usage
	}
	return b
}

// GetResult validates the configuration and creates the texture.
func (b *TextureBuilder) GetResult() (*Texture, error) {
	return b.finish(b.validate, b.create)
}

func (b *TextureBuilder) validate() error {
	switch {
	case !b.hasExtent:
		return missing("extent")
	case !b.hasFormat:
		return missing("format")
	case !b.hasUsage:
		return missing("allowed usage")
	}
	if _, ok := gpucore.TexelSize(b.format); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, b.format)
	}

	s := b.size
	if s.Width == 0 || s.Height == 0 || s.DepthOrArrayLayers == 0 {
		return fmt.Errorf("%w: texture extent %dx%dx%d has a zero dimension",
			ErrOutOfRange, s.Width, s.Height, s.DepthOrArrayLayers)
	}
	lim := b.device.limits
	var maxDim, maxMipDim uint32
	switch b.dimension {
	case gputypes.TextureDimension1D:
		if s.Height != 1 || s.DepthOrArrayLayers != 1 {
			return fmt.Errorf("%w: 1D texture must have height and depth 1", ErrOutOfRange)
		}
		maxDim, maxMipDim = lim.MaxTextureDimension1D, s.Width
	case gputypes.TextureDimension2D:
		if s.DepthOrArrayLayers > lim.MaxTextureArrayLayers {
			return fmt.Errorf("%w: %d array layers exceed limit %d",
				ErrOutOfRange, s.DepthOrArrayLayers, lim.MaxTextureArrayLayers)
		}
		maxDim, maxMipDim = lim.MaxTextureDimension2D, max(s.Width, s.Height)
	case gputypes.TextureDimension3D:
		maxDim, maxMipDim = lim.MaxTextureDimension3D, max(s.Width, s.Height, s.DepthOrArrayLayers)
		if s.DepthOrArrayLayers > maxDim {
			return fmt.Errorf("%w: depth %d exceeds limit %d", ErrOutOfRange, s.DepthOrArrayLayers, maxDim)
		}
	default:
		return fmt.Errorf("%w: texture dimension %d", ErrOutOfRange, b.dimension)
	}
	if s.Width > maxDim || s.Height > maxDim {
		return fmt.Errorf("%w: extent %dx%d exceeds limit %d", ErrOutOfRange, s.Width, s.Height, maxDim)
	}

	if maxLevels := mathutil.Log2(uint64(maxMipDim)) + 1; b.mipLevels == 0 || b.mipLevels > maxLevels {
		return fmt.Errorf("%w: %d mip levels not in [1, %d]", ErrOutOfRange, b.mipLevels, maxLevels)
	}

	switch {
	case b.usage == TextureUsageNone:
		return fmt.Errorf("%w: empty", ErrInvalidUsage)
	case b.usage.ContainsUnknownBits():
		return fmt.Errorf("%w: unknown bits in %#x", ErrInvalidUsage, uint64(b.usage))
	}
	return nil
}

func (b *TextureBuilder) create() (*Texture, error) {
	d := b.device
	desc := &gpucore.TextureDesc{
		Label:         b.label,
		Dimension:     b.dimension,
		Size:          b.size,
		Format:        b.format,
		MipLevelCount: b.mipLevels,
		Usage:         b.usage,
	}
	var id gpucore.TextureID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateTexture(desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	t := &Texture{
		id:        id,
		dimension: b.dimension,
		size:      b.size,
		format:    b.format,
		mipLevels: b.mipLevels,
		usage:     b.usage,
	}
	t.setup(d, KindTexture, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyTexture(id) })
	})
	return t, nil
}

// TextureView selects a mip range and an array layer range of a texture for
// binding or rendering.
type TextureView struct {
	object
	id             gpucore.TextureViewID
	texture        *Texture
	format         gputypes.TextureFormat
	dimension      gputypes.TextureViewDimension
	baseMipLevel   uint32
	mipLevels      uint32
	baseArrayLayer uint32
	arrayLayers    uint32
}

// Texture returns the viewed texture.
func (v *TextureView) Texture() *Texture { return v.texture }

// Format returns the view format.
func (v *TextureView) Format() gputypes.TextureFormat { return v.format }

// BaseMipLevel returns the first mip level of the view.
func (v *TextureView) BaseMipLevel() uint32 { return v.baseMipLevel }

// MipLevelCount returns the number of mip levels in the view.
func (v *TextureView) MipLevelCount() uint32 { return v.mipLevels }

// BaseArrayLayer returns the first array layer of the view.
func (v *TextureView) BaseArrayLayer() uint32 { return v.baseArrayLayer }

// ArrayLayerCount returns the number of array layers in the view.
func (v *TextureView) ArrayLayerCount() uint32 { return v.arrayLayers }

// Dimension returns the view dimension.
func (v *TextureView) Dimension() gputypes.TextureViewDimension { return v.dimension }

// CreateTextureViewBuilder returns a builder for a view of the texture.
// Without settings the view covers every mip level and array layer in the
// texture format.
func (t *Texture) CreateTextureViewBuilder() *TextureViewBuilder {
	return &TextureViewBuilder{
		builder: newBuilder[*TextureView](t.device, "TextureViewBuilder"),
		texture: t,
	}
}

// TextureViewBuilder stages the configuration of a TextureView.
type TextureViewBuilder struct {
	builder[*TextureView]
	texture   *Texture
	label     string
	format    gputypes.TextureFormat
	baseLevel uint32
	levels    uint32
	baseLayer uint32
	layers    uint32

	hasLabel, hasFormat, hasMipRange, hasLayerRange bool
}

// SetLabel sets the debug label.
func (b *TextureViewBuilder) SetLabel(label string) *TextureViewBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetFormat sets the view format. It must equal the texture format.
func (b *TextureViewBuilder) SetFormat(format gputypes.TextureFormat) *TextureViewBuilder {
	if b.property("SetFormat", &b.hasFormat) {
		b.format = format
	}
	return b
}

// SetMipRange selects count mip levels starting at base.
func (b *TextureViewBuilder) SetMipRange(base, count uint32) *TextureViewBuilder {
	if b.property("SetMipRange", &b.hasMipRange) {
		b.baseLevel, b.levels = base, count
	}
	return b
}

// SetArrayLayers selects count array layers starting at base. A 3D texture
// has a single layer.
func (b *TextureViewBuilder) SetArrayLayers(base, count uint32) *TextureViewBuilder {
	if b.property("SetArrayLayers", &b.hasLayerRange) {
		b.baseLayer, b.layers = base, count
	}
	return b
}

// GetResult validates the configuration and creates the view.
func (b *TextureViewBuilder) GetResult() (*TextureView, error) {
	return b.finish(b.validate, b.create)
}

func (b *TextureViewBuilder) validate() error {
	if err := checkObject(b.device, baseOf(b.texture), "texture"); err != nil {
		return err
	}
	t := b.texture
	if !b.hasFormat {
		b.format = t.format
	}
	if b.format != t.format {
		return fmt.Errorf("%w: view format %s differs from texture format %s",
			ErrInvalidFormat, b.format, t.format)
	}
	if !b.hasMipRange {
		b.baseLevel, b.levels = 0, t.mipLevels
	}
	if b.levels == 0 || b.baseLevel >= t.mipLevels || b.levels > t.mipLevels-b.baseLevel {
		return fmt.Errorf("%w: mip range [%d, %d+%d) outside %d levels",
			ErrOutOfRange, b.baseLevel, b.baseLevel, b.levels, t.mipLevels)
	}
	n := t.arrayLayerCount()
	if !b.hasLayerRange {
		b.baseLayer, b.layers = 0, n
	}
	if b.layers == 0 || b.baseLayer >= n || b.layers > n-b.baseLayer {
		return fmt.Errorf("%w: array layer range [%d, %d+%d) outside %d layers",
			ErrOutOfRange, b.baseLayer, b.baseLayer, b.layers, n)
	}
	return nil
}

// arrayLayerCount returns the number of array layers. Depth slices of a 3D
// texture are not layers.
func (t *Texture) arrayLayerCount() uint32 {
	if t.dimension == gputypes.TextureDimension3D {
		return 1
	}
	return t.size.DepthOrArrayLayers
}

// viewDimension derives the dimension of a view covering layers array
// layers of t.
func viewDimension(t *Texture, layers uint32) gputypes.TextureViewDimension {
	switch t.dimension {
	case gputypes.TextureDimension1D:
		return gputypes.TextureViewDimension1D
	case gputypes.TextureDimension3D:
		return gputypes.TextureViewDimension3D
	}
	if layers > 1 {
		return gputypes.TextureViewDimension2DArray
	}
	return gputypes.TextureViewDimension2D
}

func (b *TextureViewBuilder) create() (*TextureView, error) {
	d := b.device
	t := b.texture
	desc := &gpucore.TextureViewDesc{
		Label:           b.label,
		Texture:         t.id,
		Format:          b.format,
		Dimension:       viewDimension(t, b.layers),
		BaseMipLevel:    b.baseLevel,
		MipLevelCount:   b.levels,
		BaseArrayLayer:  b.baseLayer,
		ArrayLayerCount: b.layers,
	}
	var id gpucore.TextureViewID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateTextureView(desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	t.AddRef()
	v := &TextureView{
		id:             id,
		texture:        t,
		format:         b.format,
		dimension:      desc.Dimension,
		baseMipLevel:   b.baseLevel,
		mipLevels:      b.levels,
		baseArrayLayer: b.baseLayer,
		arrayLayers:    b.layers,
	}
	v.setup(d, KindTextureView, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyTextureView(id) })
		t.Release()
	})
	return v, nil
}

// Sampler holds texture filtering and addressing state.
type Sampler struct {
	object
	id gpucore.SamplerID
}

// SamplerBuilder stages the configuration of a Sampler. Addressing defaults
// to clamp-to-edge and filtering to nearest.
type SamplerBuilder struct {
	builder[*Sampler]
	desc gpucore.SamplerDesc

	hasLabel, hasAddressMode, hasFilter bool
}

// CreateSamplerBuilder returns a builder for a new sampler. No property is
// required.
func (d *Device) CreateSamplerBuilder() *SamplerBuilder {
	return &SamplerBuilder{
		builder: newBuilder[*Sampler](d, "SamplerBuilder"),
		desc: gpucore.SamplerDesc{
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    gputypes.FilterModeNearest,
			MinFilter:    gputypes.FilterModeNearest,
			MipmapFilter: gputypes.FilterModeNearest,
		},
	}
}

// SetLabel sets the debug label.
func (b *SamplerBuilder) SetLabel(label string) *SamplerBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.desc.Label = label
	}
	return b
}

// SetAddressMode sets the addressing for the u, v and w coordinates.
func (b *SamplerBuilder) SetAddressMode(u, v, w gputypes.AddressMode) *SamplerBuilder {
	if b.property("SetAddressMode", &b.hasAddressMode) {
		b.desc.AddressModeU, b.desc.AddressModeV, b.desc.AddressModeW = u, v, w
	}
	return b
}

// SetFilter sets the magnification, minification and mipmap filters.
func (b *SamplerBuilder) SetFilter(mag, minify, mipmap gputypes.FilterMode) *SamplerBuilder {
	if b.property("SetFilter", &b.hasFilter) {
		b.desc.MagFilter, b.desc.MinFilter, b.desc.MipmapFilter = mag, minify, mipmap
	}
	return b
}

// GetResult validates the configuration and creates the sampler.
func (b *SamplerBuilder) GetResult() (*Sampler, error) {
	return b.finish(b.validate, b.create)
}

func (b *SamplerBuilder) validate() error {
	for _, m := range []gputypes.AddressMode{b.desc.AddressModeU, b.desc.AddressModeV, b.desc.AddressModeW} {
		if m < gputypes.AddressModeClampToEdge || m > gputypes.AddressModeMirrorRepeat {
			return fmt.Errorf("%w: address mode %s", ErrOutOfRange, m)
		}
	}
	for _, f := range []gputypes.FilterMode{b.desc.MagFilter, b.desc.MinFilter, b.desc.MipmapFilter} {
		if f != gputypes.FilterModeNearest && f != gputypes.FilterModeLinear {
			return fmt.Errorf("%w: filter mode %s", ErrOutOfRange, f)
		}
	}
	return nil
}

func (b *SamplerBuilder) create() (*Sampler, error) {
	d := b.device
	desc := b.desc
	var id gpucore.SamplerID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateSampler(&desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	s := &Sampler{id: id}
	s.setup(d, KindSampler, desc.Label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroySampler(id) })
	})
	return s, nil
}
