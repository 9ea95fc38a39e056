// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/mathutil"
	"github.com/gogpu/gputypes"
)

// encodeColor returns the texel bytes of c in format.
func encodeColor(format gputypes.TextureFormat, c gputypes.Color) ([]byte, error) {
	r, g, b, a := float32(c.R), float32(c.G), float32(c.B), float32(c.A)
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return []byte{unorm8(r)}, nil
	case gputypes.TextureFormatRG8Unorm:
		return []byte{unorm8(r), unorm8(g)}, nil
	case gputypes.TextureFormatR32Uint:
		return binary.LittleEndian.AppendUint32(nil, uint32(max(c.R, 0))), nil
	case gputypes.TextureFormatR32Float:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(r)), nil
	case gputypes.TextureFormatRGBA8Unorm:
		return []byte{unorm8(r), unorm8(g), unorm8(b), unorm8(a)}, nil
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return []byte{srgb8(r), srgb8(g), srgb8(b), unorm8(a)}, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return []byte{unorm8(b), unorm8(g), unorm8(r), unorm8(a)}, nil
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return []byte{srgb8(b), srgb8(g), srgb8(r), unorm8(a)}, nil
	case gputypes.TextureFormatRGBA16Float:
		out := make([]byte, 0, 8)
		for _, v := range [4]float32{r, g, b, a} {
			out = binary.LittleEndian.AppendUint16(out, mathutil.Float32ToFloat16(v))
		}
		return out, nil
	case gputypes.TextureFormatRGBA32Float:
		out := make([]byte, 0, 16)
		for _, v := range [4]float32{r, g, b, a} {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: clear of format %s", gpucore.ErrUnsupported, format)
}

func unorm8(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

func srgb8(v float32) uint8 {
	return unorm8(mathutil.LinearToSRGB(min(max(v, 0), 1)))
}
