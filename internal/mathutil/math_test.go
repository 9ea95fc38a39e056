// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mathutil

import (
	"math"
	"testing"
)

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n    uint64
		want bool
	}{
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{4, true},
		{6, false},
		{255, false},
		{256, true},
		{1 << 63, true},
		{1<<63 + 1, false},
		{math.MaxUint64, false},
	}
	for _, tt := range tests {
		if got := IsPowerOfTwo(tt.n); got != tt.want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestAlign(t *testing.T) {
	tests := []struct {
		value, alignment, want uint32
	}{
		{0, 1, 0},
		{0, 4, 0},
		{1, 4, 4},
		{3, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{255, 256, 256},
		{257, 256, 512},
		{7, 1, 7},
	}
	for _, tt := range tests {
		if got := Align(tt.value, tt.alignment); got != tt.want {
			t.Errorf("Align(%d, %d) = %d, want %d", tt.value, tt.alignment, got, tt.want)
		}
	}
}

// TestAlignProperties checks that Align yields the smallest aligned value
// not below the input and that aligning twice changes nothing.
func TestAlignProperties(t *testing.T) {
	for shift := 0; shift < 12; shift++ {
		a := uint32(1) << shift
		for v := uint32(0); v < 3*a+5; v++ {
			got := Align(v, a)
			if got < v {
				t.Fatalf("Align(%d, %d) = %d < value", v, a, got)
			}
			if got%a != 0 {
				t.Fatalf("Align(%d, %d) = %d not a multiple", v, a, got)
			}
			if got >= a && got-a >= v {
				t.Fatalf("Align(%d, %d) = %d is not the smallest multiple", v, a, got)
			}
			if again := Align(got, a); again != got {
				t.Fatalf("Align(Align(%d, %d)) = %d, want %d", v, a, again, got)
			}
			if !IsAligned(got, a) {
				t.Fatalf("IsAligned(%d, %d) = false", got, a)
			}
		}
	}
}

func TestAlignPanicsOnBadAlignment(t *testing.T) {
	for _, a := range []uint32{0, 3, 12} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Align(1, %d) did not panic", a)
				}
			}()
			Align(uint32(1), a)
		}()
	}
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(uint64(512), 256) {
		t.Error("512 should be 256-aligned")
	}
	if IsAligned(uint64(260), 256) {
		t.Error("260 should not be 256-aligned")
	}
	if !IsPtrAligned(0x1000, 16) {
		t.Error("0x1000 should be 16-aligned")
	}
	if got := AlignPtr(0x1001, 16); got != 0x1010 {
		t.Errorf("AlignPtr(0x1001, 16) = %#x, want 0x1010", got)
	}
}

func TestScanForwardAndLog2(t *testing.T) {
	if got := ScanForward(0b1000); got != 3 {
		t.Errorf("ScanForward(8) = %d, want 3", got)
	}
	if got := ScanForward(0x80000001); got != 0 {
		t.Errorf("ScanForward(0x80000001) = %d, want 0", got)
	}
	tests := []struct {
		v    uint64
		want uint32
	}{
		{1, 0}, {2, 1}, {3, 1}, {4, 2}, {1023, 9}, {1024, 10}, {math.MaxUint64, 63},
	}
	for _, tt := range tests {
		if got := Log2(tt.v); got != tt.want {
			t.Errorf("Log2(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ n, want uint64 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {1000, 1024}, {1 << 40, 1 << 40}, {1<<40 + 1, 1 << 41},
	}
	for _, tt := range tests {
		if got := NextPowerOfTwo(tt.n); got != tt.want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFloat32ToFloat16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want uint16
	}{
		{"zero", 0, 0x0000},
		{"negative zero", float32(math.Copysign(0, -1)), 0x8000},
		{"one", 1, 0x3c00},
		{"minus two", -2, 0xc000},
		{"half", 0.5, 0x3800},
		{"max half", 65504, 0x7bff},
		{"overflow", 1e6, 0x7c00},
		{"inf", float32(math.Inf(1)), 0x7c00},
		{"smallest normal", 6.103515625e-05, 0x0400},
		{"smallest denormal", 5.960464477539063e-08, 0x0001},
		{"denormal tie down", 0.5 * 5.960464477539063e-08, 0x0000},
		{"denormal tie up", 1.5 * 5.960464477539063e-08, 0x0002},
		{"denormal tie to even", 2.5 * 5.960464477539063e-08, 0x0002},
		{"normal tie down", 1 + 1.0/2048, 0x3c00},
		{"normal tie up", 1 + 3.0/2048, 0x3c02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Float32ToFloat16(tt.in); got != tt.want {
				t.Errorf("Float32ToFloat16(%v) = %#04x, want %#04x", tt.in, got, tt.want)
			}
		})
	}

	nan := Float32ToFloat16(float32(math.NaN()))
	if !IsFloat16NaN(nan) {
		t.Errorf("Float32ToFloat16(NaN) = %#04x, not a half NaN", nan)
	}
	if IsFloat16NaN(0x7c00) {
		t.Error("infinity reported as NaN")
	}
}

func TestSRGBToLinear(t *testing.T) {
	if got := SRGBToLinear(0); got != 0 {
		t.Errorf("SRGBToLinear(0) = %v, want 0", got)
	}
	if got := SRGBToLinear(1); math.Abs(float64(got)-1) > 1e-5 {
		t.Errorf("SRGBToLinear(1) = %v, want 1", got)
	}
	if got := SRGBToLinear(0.5); math.Abs(float64(got)-0.214041) > 1e-4 {
		t.Errorf("SRGBToLinear(0.5) = %v, want ~0.2140", got)
	}
	prev := float32(-1)
	for i := 0; i <= 100; i++ {
		v := SRGBToLinear(float32(i) / 100)
		if v < prev {
			t.Fatalf("SRGBToLinear not monotonic at %d", i)
		}
		prev = v
	}
}

func TestLinearToSRGBRoundTrip(t *testing.T) {
	for i := 0; i <= 100; i++ {
		v := float32(i) / 100
		got := SRGBToLinear(LinearToSRGB(v))
		if math.Abs(float64(got-v)) > 1e-4 {
			t.Errorf("SRGBToLinear(LinearToSRGB(%v)) = %v", v, got)
		}
	}
	if got := LinearToSRGB(0.214041); math.Abs(float64(got)-0.5) > 1e-4 {
		t.Errorf("LinearToSRGB(0.2140) = %v, want ~0.5", got)
	}
}
