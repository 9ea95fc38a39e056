// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/forge/internal/shadertest"
)

// copyCommandBuffer records a copy of size bytes from src to dst.
func copyCommandBuffer(t *testing.T, d *Device, src, dst *Buffer, size uint64) *CommandBuffer {
	t.Helper()
	cb, err := d.CreateCommandBufferBuilder().CopyBufferToBuffer(src, 0, dst, 0, size).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	return cb
}

func TestQueueSubmitOnce(t *testing.T) {
	d, log := newTestDevice(t)
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	defer src.Release()
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)
	defer dst.Release()

	cb := copyCommandBuffer(t, d, src, dst, 16)
	defer cb.Release()
	if cb.Submitted() {
		t.Fatal("new command buffer reports Submitted")
	}
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatal(err)
	}
	if !cb.Submitted() {
		t.Error("Submitted() = false after Submit")
	}
	wantError(t, d.Queue().Submit(cb), ErrorKindUsage, ErrAlreadySubmitted)
	if got := log.len(); got != 1 {
		t.Errorf("%d errors reported, want 1", got)
	}
}

func TestQueueSubmitDuplicateInOneCall(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	defer src.Release()
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)
	defer dst.Release()
	a := copyCommandBuffer(t, d, src, dst, 16)
	defer a.Release()
	b := copyCommandBuffer(t, d, src, dst, 16)
	defer b.Release()

	wantError(t, d.Queue().Submit(a, b, a), ErrorKindUsage, ErrAlreadySubmitted)
	// Nothing was submitted.
	if a.Submitted() || b.Submitted() {
		t.Error("command buffers marked submitted after a rejected Submit")
	}
	if err := d.Queue().Submit(a, b); err != nil {
		t.Fatal(err)
	}
}

func TestQueueSubmitInvalid(t *testing.T) {
	d, _ := newTestDevice(t)
	other, _ := newTestDevice(t)
	src := mustBuffer(t, other, 16, BufferUsageCopySrc)
	defer src.Release()
	dst := mustBuffer(t, other, 16, BufferUsageCopyDst)
	defer dst.Release()
	foreign := copyCommandBuffer(t, other, src, dst, 16)
	defer foreign.Release()

	wantError(t, d.Queue().Submit(nil), ErrorKindUsage, ErrInvalidObject)
	wantError(t, d.Queue().Submit(foreign), ErrorKindUsage, ErrDeviceMismatch)
	if err := d.Queue().Submit(); err != nil {
		t.Errorf("empty Submit: %v", err)
	}
}

func TestQueueReleaseAfterSubmit(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 64, BufferUsageCopySrc|BufferUsageCopyDst)
	dst := mustBuffer(t, d, 64, BufferUsageCopyDst|BufferUsageCopySrc)
	defer dst.Release()

	want := bytes.Repeat([]byte{0xab}, 64)
	if err := src.SetSubData(0, want); err != nil {
		t.Fatal(err)
	}
	cb := copyCommandBuffer(t, d, src, dst, 64)
	src.Release()
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatal(err)
	}
	cb.Release()

	got, err := dst.GetSubData(0, 64)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("dst = %x, want %x", got, want)
	}
	// The queue dropped the command buffer and its source buffer.
	assertStats(t, d, map[ObjectKind]int{KindBuffer: 1})
}

func TestQueueOrdering(t *testing.T) {
	d, _ := newTestDevice(t)
	a := mustBuffer(t, d, 4, BufferUsageCopySrc|BufferUsageCopyDst)
	defer a.Release()
	b := mustBuffer(t, d, 4, BufferUsageCopySrc|BufferUsageCopyDst)
	defer b.Release()

	word := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	if err := a.SetSubData(0, word(1)); err != nil {
		t.Fatal(err)
	}
	// a -> b, then b -> a after a is overwritten: a must end up with 1.
	ab := copyCommandBuffer(t, d, a, b, 4)
	defer ab.Release()
	ba := copyCommandBuffer(t, d, b, a, 4)
	defer ba.Release()
	if err := d.Queue().Submit(ab); err != nil {
		t.Fatal(err)
	}
	if err := a.SetSubData(0, word(2)); err != nil {
		t.Fatal(err)
	}
	if err := d.Queue().Submit(ba); err != nil {
		t.Fatal(err)
	}

	got, err := a.GetSubData(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if v := binary.LittleEndian.Uint32(got); v != 1 {
		t.Errorf("a = %d, want 1", v)
	}
}

func TestQueueOnSubmittedWorkDone(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	defer src.Release()
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)
	defer dst.Release()

	for range 8 {
		cb := copyCommandBuffer(t, d, src, dst, 16)
		if err := d.Queue().Submit(cb); err != nil {
			t.Fatal(err)
		}
		cb.Release()
	}
	select {
	case <-d.Queue().OnSubmittedWorkDone():
	case <-time.After(10 * time.Second):
		t.Fatal("OnSubmittedWorkDone did not fire")
	}
	// Every command buffer has executed and been dropped by the queue.
	assertStats(t, d, map[ObjectKind]int{KindBuffer: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Queue().WaitIdle(ctx); err != nil {
		t.Errorf("WaitIdle: %v", err)
	}
}

func TestQueueWaitIdleCancelled(t *testing.T) {
	d, _ := newTestDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Either outcome is valid for an idle queue; a cancelled context must
	// never block.
	if err := d.Queue().WaitIdle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("WaitIdle = %v", err)
	}
}

func TestQueueClosed(t *testing.T) {
	d, _ := newTestDevice(t)
	src := mustBuffer(t, d, 16, BufferUsageCopySrc)
	defer src.Release()
	dst := mustBuffer(t, d, 16, BufferUsageCopyDst)
	defer dst.Release()
	cb := copyCommandBuffer(t, d, src, dst, 16)
	defer cb.Release()

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	wantError(t, d.Queue().Submit(cb), ErrorKindUsage, ErrDeviceClosed)
	if cb.Submitted() {
		t.Error("command buffer marked submitted on a closed device")
	}
	select {
	case <-d.Queue().OnSubmittedWorkDone():
	default:
		t.Error("OnSubmittedWorkDone on a closed device is not closed")
	}
}

// failingCommandBuffer records a dispatch of a module without a kernel. It
// compiles but fails when executed.
func failingCommandBuffer(t *testing.T, d *Device) *CommandBuffer {
	t.Helper()
	fx := newComputeFixture(t, d, 1)
	buf := mustBuffer(t, d, 512, BufferUsageStorage)
	defer buf.Release()
	a := mustView(t, buf, 0, 256)
	defer a.Release()
	b := mustView(t, buf, 256, 256)
	defer b.Release()
	g, err := d.CreateBindGroupBuilder().SetLayout(fx.layout).SetUsage(BindGroupUsageFrozen).SetBufferViews(0, a, b).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()

	m, err := d.CreateShaderModuleBuilder().SetLabel("missing").SetSPIRV(shadertest.Compute("main", 1, 1, 1)).GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()
	p, err := d.CreateComputePipelineBuilder().SetLayout(fx.pipeline.Layout()).SetStage(ShaderStageCompute, m, "main").GetResult()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release()

	cb, err := d.CreateCommandBufferBuilder().
		BeginComputePass().
		SetComputePipeline(p).
		SetBindGroup(0, g).
		Dispatch(1, 1, 1).
		EndComputePass().
		GetResult()
	if err != nil {
		t.Fatal(err)
	}
	return cb
}

func TestQueueBackendError(t *testing.T) {
	d, log := newTestDevice(t)
	cb := failingCommandBuffer(t, d)
	defer cb.Release()
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-d.Queue().OnSubmittedWorkDone()

	errs := log.waitLen(t, 1)
	if len(errs) != 1 {
		t.Fatalf("%d errors reported, want 1", len(errs))
	}
	if e := errs[0]; e.Kind != ErrorKindBackend || e.Object != "Queue" {
		t.Errorf("error = %v, want a backend error from Queue", e)
	}
	if d.Lost() {
		t.Error("execution failure marked the device lost")
	}
}

// An error callback for failed work may use the queue.
func TestQueueErrorCallbackUsesQueue(t *testing.T) {
	tests := []struct {
		name string
		use  func(d *Device, buf *Buffer) error
	}{
		{"GetSubData", func(_ *Device, buf *Buffer) error {
			_, err := buf.GetSubData(0, 4)
			return err
		}},
		{"SetSubData", func(_ *Device, buf *Buffer) error {
			return buf.SetSubData(0, []byte{1, 2, 3, 4})
		}},
		{"WaitIdle", func(d *Device, _ *Buffer) error {
			return d.Queue().WaitIdle(context.Background())
		}},
		{"Submit", func(d *Device, buf *Buffer) error {
			cb, err := d.CreateCommandBufferBuilder().CopyBufferToBuffer(buf, 0, buf, 8, 4).GetResult()
			if err != nil {
				return err
			}
			defer cb.Release()
			if err := d.Queue().Submit(cb); err != nil {
				return err
			}
			<-d.Queue().OnSubmittedWorkDone()
			return nil
		}},
		{"Close", func(d *Device, _ *Buffer) error {
			return d.Close()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDevice(t)
			buf := mustBuffer(t, d, 16, BufferUsageCopySrc|BufferUsageCopyDst)
			defer buf.Release()
			cb := failingCommandBuffer(t, d)
			defer cb.Release()

			result := make(chan error, 1)
			var once sync.Once
			d.SetErrorCallback(func(e *Error) {
				if e.Object == "Queue" && e.Kind == ErrorKindBackend {
					once.Do(func() { result <- tt.use(d, buf) })
				}
			})
			if err := d.Queue().Submit(cb); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			select {
			case err := <-result:
				if err != nil {
					t.Errorf("%s from the error callback: %v", tt.name, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("%s from the error callback did not return", tt.name)
			}
		})
	}
}

// A callback waiting on the queue while later work also fails still
// returns, and every failure is delivered.
func TestQueueErrorCallbackWaitsWithMoreFailures(t *testing.T) {
	d, _ := newTestDevice(t)
	first := failingCommandBuffer(t, d)
	defer first.Release()
	second := failingCommandBuffer(t, d)
	defer second.Release()

	delivered := make(chan *Error, 2)
	done := make(chan error, 1)
	var once sync.Once
	d.SetErrorCallback(func(e *Error) {
		delivered <- e
		once.Do(func() { done <- d.Queue().WaitIdle(context.Background()) })
	})
	if err := d.Queue().Submit(first, second); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitIdle: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitIdle from the error callback did not return")
	}
	for i := range 2 {
		select {
		case e := <-delivered:
			if e.Kind != ErrorKindBackend {
				t.Errorf("error %d = %v, want a backend error", i, e)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%d errors delivered, want 2", i)
		}
	}
}
