// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestDefaultDeviceOptions(t *testing.T) {
	o := defaultDeviceOptions()
	if o.queueDepth != defaultQueueDepth {
		t.Errorf("queueDepth = %d, want %d", o.queueDepth, defaultQueueDepth)
	}
	if o.onError != nil || o.limits != nil || o.label != "" {
		t.Errorf("unexpected defaults: %+v", o)
	}
}

func TestWithQueueDepth(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 1, want: 1},
		{n: 256, want: 256},
		{n: 0, want: defaultQueueDepth},
		{n: -4, want: defaultQueueDepth},
	}
	for _, tt := range tests {
		o := defaultDeviceOptions()
		WithQueueDepth(tt.n)(&o)
		if o.queueDepth != tt.want {
			t.Errorf("WithQueueDepth(%d): queueDepth = %d, want %d", tt.n, o.queueDepth, tt.want)
		}
	}
}

func TestWithQueueDepthOne(t *testing.T) {
	d, _ := newTestDevice(t, WithQueueDepth(1))
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	defer src.Release()
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)
	defer dst.Release()

	// More submissions than queue slots block instead of failing.
	for range 4 {
		cb, err := d.CreateCommandBufferBuilder().CopyBufferToBuffer(src, 0, dst, 0, 16).GetResult()
		if err != nil {
			t.Fatal(err)
		}
		if err := d.Queue().Submit(cb); err != nil {
			t.Fatal(err)
		}
		cb.Release()
	}
	<-d.Queue().OnSubmittedWorkDone()
}

func TestWithLimits(t *testing.T) {
	limits := gputypes.DefaultLimits()
	limits.MaxBufferSize = 64
	d, _ := newTestDevice(t, WithLimits(limits))
	if got := d.Limits().MaxBufferSize; got != 64 {
		t.Fatalf("MaxBufferSize = %d, want 64", got)
	}

	_, err := d.CreateBufferBuilder().SetSize(128).SetAllowedUsage(BufferUsageStorage).GetResult()
	wantError(t, err, ErrorKindValidation, ErrOutOfRange)
}

func TestWithLimitAdjustment(t *testing.T) {
	d, _ := newTestDevice(t,
		withLimitAdjustment(func(l *gputypes.Limits) { l.MaxBindGroups = 2 }),
		withLimitAdjustment(func(l *gputypes.Limits) { l.MaxBindGroups-- }),
	)
	if got := d.Limits().MaxBindGroups; got != 1 {
		t.Errorf("MaxBindGroups = %d, want 1", got)
	}
}

func TestWithErrorCallbackReplaced(t *testing.T) {
	d, first := newTestDevice(t)
	second := new(errorLog)
	d.SetErrorCallback(second.record)

	_, _ = d.CreateBufferBuilder().GetResult()
	if first.len() != 0 || second.len() != 1 {
		t.Errorf("errors delivered to first %d, second %d; want 0, 1", first.len(), second.len())
	}
}
