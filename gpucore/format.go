// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "github.com/gogpu/gputypes"

// texelSizes lists the formats every backend can store and copy, with their
// size in bytes per texel.
var texelSizes = map[gputypes.TextureFormat]uint32{
	gputypes.TextureFormatR8Unorm:        1,
	gputypes.TextureFormatRG8Unorm:       2,
	gputypes.TextureFormatR32Uint:        4,
	gputypes.TextureFormatR32Float:       4,
	gputypes.TextureFormatRGBA8Unorm:     4,
	gputypes.TextureFormatRGBA8UnormSrgb: 4,
	gputypes.TextureFormatBGRA8Unorm:     4,
	gputypes.TextureFormatBGRA8UnormSrgb: 4,
	gputypes.TextureFormatRGBA16Float:    8,
	gputypes.TextureFormatRGBA32Float:    16,
}

// TexelSize returns the byte size of one texel of format.
// ok is false for formats that are not supported for storage and copies.
func TexelSize(format gputypes.TextureFormat) (size uint32, ok bool) {
	size, ok = texelSizes[format]
	return size, ok
}

// MipExtent returns the size of the given mip level of a texture, never
// less than one texel in each dimension.
func MipExtent(size gputypes.Extent3D, dim gputypes.TextureDimension, level uint32) gputypes.Extent3D {
	shrink := func(v uint32) uint32 {
		v >>= level
		if v == 0 {
			return 1
		}
		return v
	}
	e := gputypes.Extent3D{
		Width:              shrink(size.Width),
		Height:             shrink(size.Height),
		DepthOrArrayLayers: size.DepthOrArrayLayers,
	}
	if dim == gputypes.TextureDimension3D {
		e.DepthOrArrayLayers = shrink(size.DepthOrArrayLayers)
	}
	return e
}
