// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mathutil provides the bit-twiddling helpers used for resource
// sizing: alignment, powers of two and half-float conversion.
//
// All functions are pure and safe for concurrent use.
package mathutil

import (
	"math"
	"math/bits"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

// IsPowerOfTwo reports whether n is a power of two. Zero is not.
func IsPowerOfTwo[T constraints.Unsigned](n T) bool {
	return n != 0 && n&(n-1) == 0
}

// Align returns the smallest multiple of alignment that is >= value.
// alignment must be a non-zero power of two; Align panics otherwise.
func Align[T constraints.Unsigned](value, alignment T) T {
	mustPowerOfTwo(alignment)
	return (value + (alignment - 1)) &^ (alignment - 1)
}

// IsAligned reports whether value is a multiple of alignment.
// alignment must be a non-zero power of two; IsAligned panics otherwise.
func IsAligned[T constraints.Unsigned](value, alignment T) bool {
	mustPowerOfTwo(alignment)
	return value&(alignment-1) == 0
}

// IsPtrAligned reports whether the address ptr is a multiple of alignment.
func IsPtrAligned(ptr uintptr, alignment uintptr) bool {
	return IsAligned(ptr, alignment)
}

// AlignPtr rounds the address ptr up to the next multiple of alignment.
func AlignPtr(ptr uintptr, alignment uintptr) uintptr {
	return Align(ptr, alignment)
}

func mustPowerOfTwo[T constraints.Unsigned](alignment T) {
	if !IsPowerOfTwo(alignment) {
		panic("mathutil: alignment must be a non-zero power of two")
	}
}

// ScanForward returns the index of the least significant set bit.
// It panics for zero.
func ScanForward(v uint32) uint32 {
	if v == 0 {
		panic("mathutil: ScanForward of zero")
	}
	return uint32(bits.TrailingZeros32(v))
}

// Log2 returns floor(log2(v)). It panics for zero.
func Log2(v uint64) uint32 {
	if v == 0 {
		panic("mathutil: Log2 of zero")
	}
	return uint32(63 - bits.LeadingZeros64(v))
}

// NextPowerOfTwo returns the smallest power of two >= n.
// NextPowerOfTwo(0) is 1. Values above 1<<63 wrap to 0.
func NextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(n-1))
}

// Float32ToFloat16 converts a float32 to IEEE 754 binary16 bits.
// Values too large for half precision become infinity, values too small
// flush to signed zero, NaN stays NaN.
func Float32ToFloat16(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000

	switch {
	case math32.IsNaN(f):
		return sign | 0x7e00
	case math32.IsInf(f, 0):
		return sign | 0x7c00
	}

	abs := math32.Abs(f)
	switch {
	case abs >= 65520: // rounds past the largest finite half
		return sign | 0x7c00
	case abs < 6.103515625e-05: // below the smallest normal half
		// Denormal half: value / 2^-24, ties to even like the normal path.
		return sign | uint16(math32.RoundToEven(abs*16777216))
	}

	exp := int32(b>>23&0xff) - 127 + 15
	mant := b & 0x7fffff
	half := uint32(exp)<<10 | mant>>13
	// round to nearest even on the dropped 13 bits
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return sign | uint16(half)
}

// IsFloat16NaN reports whether the half-precision bits encode a NaN.
func IsFloat16NaN(h uint16) bool {
	return h&0x7c00 == 0x7c00 && h&0x03ff != 0
}

// SRGBToLinear converts an sRGB encoded channel in [0, 1] to linear space.
func SRGBToLinear(srgb float32) float32 {
	if srgb <= 0.04045 {
		return srgb / 12.92
	}
	return math32.Pow((srgb+0.055)/1.055, 2.4)
}

// LinearToSRGB converts a linear channel in [0, 1] to sRGB encoding.
func LinearToSRGB(linear float32) float32 {
	if linear <= 0.0031308 {
		return linear * 12.92
	}
	return 1.055*math32.Pow(linear, 1/2.4) - 0.055
}
