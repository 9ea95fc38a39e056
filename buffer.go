// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/mathutil"
	"github.com/gogpu/gputypes"
)

// BufferUsage is the set of operations a buffer allows.
type BufferUsage = gputypes.BufferUsage

// Buffer usage flags.
const (
	BufferUsageNone     BufferUsage = 0
	BufferUsageMapRead              = gputypes.BufferUsageMapRead
	BufferUsageMapWrite             = gputypes.BufferUsageMapWrite
	BufferUsageCopySrc              = gputypes.BufferUsageCopySrc
	BufferUsageCopyDst              = gputypes.BufferUsageCopyDst
	BufferUsageIndex                = gputypes.BufferUsageIndex
	BufferUsageVertex               = gputypes.BufferUsageVertex
	BufferUsageUniform              = gputypes.BufferUsageUniform
	BufferUsageStorage              = gputypes.BufferUsageStorage
	BufferUsageIndirect             = gputypes.BufferUsageIndirect
)

// copyAlignment is the required alignment of buffer write and copy
// offsets and sizes.
const copyAlignment = 4

// Buffer is a linear block of device memory. Its size and usage are fixed
// at creation; its contents change through SetSubData and copies.
type Buffer struct {
	object
	id    gpucore.BufferID
	size  uint64
	usage BufferUsage
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the allowed usage flags.
func (b *Buffer) Usage() BufferUsage { return b.usage }

// SetSubData writes data at offset. The write is ordered after all work
// submitted before it and is applied when SetSubData returns.
//
// The buffer needs CopyDst usage; offset and len(data) must be multiples
// of 4 and the range must lie within the buffer.
func (b *Buffer) SetSubData(offset uint64, data []byte) error {
	const op = "SetSubData"
	d := b.device
	if !b.alive() {
		return d.fail(ErrorKindUsage, "Buffer", op, ErrInvalidObject)
	}
	if !b.usage.Contains(BufferUsageCopyDst) {
		return d.fail(ErrorKindValidation, "Buffer", op,
			fmt.Errorf("%w: buffer %q lacks CopyDst", ErrUsageMismatch, b.label))
	}
	if err := checkBufferRange(b.size, offset, uint64(len(data))); err != nil {
		return d.fail(ErrorKindValidation, "Buffer", op, err)
	}
	if len(data) == 0 {
		return nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	id := b.id
	b.AddRef()
	defer b.Release()
	return d.queue.do("Buffer", op, func(be gpucore.Backend) error {
		return be.WriteBuffer(id, offset, buf)
	})
}

// GetSubData reads size bytes at offset. The read observes all work
// submitted before it.
//
// The buffer needs CopySrc or MapRead usage; offset and size must be
// multiples of 4 and the range must lie within the buffer.
func (b *Buffer) GetSubData(offset, size uint64) ([]byte, error) {
	const op = "GetSubData"
	d := b.device
	if !b.alive() {
		return nil, d.fail(ErrorKindUsage, "Buffer", op, ErrInvalidObject)
	}
	if !b.usage.Contains(BufferUsageCopySrc) && !b.usage.Contains(BufferUsageMapRead) {
		return nil, d.fail(ErrorKindValidation, "Buffer", op,
			fmt.Errorf("%w: buffer %q lacks CopySrc or MapRead", ErrUsageMismatch, b.label))
	}
	if err := checkBufferRange(b.size, offset, size); err != nil {
		return nil, d.fail(ErrorKindValidation, "Buffer", op, err)
	}
	if size == 0 {
		return []byte{}, nil
	}

	var out []byte
	id := b.id
	b.AddRef()
	defer b.Release()
	err := d.queue.do("Buffer", op, func(be gpucore.Backend) error {
		data, err := be.ReadBuffer(id, offset, size)
		out = data
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkBufferRange validates a 4-byte aligned [offset, offset+size) range.
func checkBufferRange(bufSize, offset, size uint64) error {
	if !mathutil.IsAligned(offset, copyAlignment) || !mathutil.IsAligned(size, copyAlignment) {
		return fmt.Errorf("%w: offset %d and size %d must be multiples of %d",
			ErrUnaligned, offset, size, copyAlignment)
	}
	if offset > bufSize || size > bufSize-offset {
		return fmt.Errorf("%w: range [%d, %d+%d) exceeds buffer size %d",
			ErrOutOfRange, offset, offset, size, bufSize)
	}
	return nil
}

// CreateBufferViewBuilder returns a builder for a view over a sub-range of
// the buffer.
func (b *Buffer) CreateBufferViewBuilder() *BufferViewBuilder {
	return &BufferViewBuilder{
		builder: newBuilder[*BufferView](b.device, "BufferViewBuilder"),
		buffer:  b,
	}
}

// BufferBuilder stages the configuration of a Buffer.
type BufferBuilder struct {
	builder[*Buffer]
	label string
	size  uint64
	usage BufferUsage

	hasLabel, hasSize, hasUsage bool
}

// CreateBufferBuilder returns a builder for a new buffer.
// Size and allowed usage are required.
func (d *Device) CreateBufferBuilder() *BufferBuilder {
	return &BufferBuilder{builder: newBuilder[*Buffer](d, "BufferBuilder")}
}

// SetLabel sets the debug label.
func (b *BufferBuilder) SetLabel(label string) *BufferBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetSize sets the size in bytes.
func (b *BufferBuilder) SetSize(size uint64) *BufferBuilder {
	if b.property("SetSize", &b.hasSize) {
		b.size = size
	}
	return b
}

// SetAllowedUsage sets the operations the buffer allows.
func (b *BufferBuilder) SetAllowedUsage(usage BufferUsage) *BufferBuilder {
	if b.property("SetAllowedUsage", &b.hasUsage) {
		b.usage = usage
	}
	return b
}

// GetResult validates the configuration and creates the buffer.
func (b *BufferBuilder) GetResult() (*Buffer, error) {
	return b.finish(b.validate, b.create)
}

func (b *BufferBuilder) validate() error {
	switch {
	case !b.hasSize:
		return missing("size")
	case !b.hasUsage:
		return missing("allowed usage")
	}
	if b.size == 0 || b.size > b.device.limits.MaxBufferSize {
		return fmt.Errorf("%w: buffer size %d not in [1, %d]",
			ErrOutOfRange, b.size, b.device.limits.MaxBufferSize)
	}
	return validateBufferUsage(b.usage)
}

// validateBufferUsage checks that usage is non-empty, known and that map
// usages only combine with the matching copy direction.
func validateBufferUsage(usage BufferUsage) error {
	switch {
	case usage == BufferUsageNone:
		return fmt.Errorf("%w: empty", ErrInvalidUsage)
	case usage.ContainsUnknownBits():
		return fmt.Errorf("%w: unknown bits in %#x", ErrInvalidUsage, uint64(usage))
	case usage.Contains(BufferUsageMapRead) && usage&^(BufferUsageMapRead|BufferUsageCopyDst) != 0:
		return fmt.Errorf("%w: MapRead may only be combined with CopyDst", ErrInvalidUsage)
	case usage.Contains(BufferUsageMapWrite) && usage&^(BufferUsageMapWrite|BufferUsageCopySrc) != 0:
		return fmt.Errorf("%w: MapWrite may only be combined with CopySrc", ErrInvalidUsage)
	}
	return nil
}

func (b *BufferBuilder) create() (*Buffer, error) {
	d := b.device
	var id gpucore.BufferID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateBuffer(&gpucore.BufferDesc{Label: b.label, Size: b.size, Usage: b.usage})
		return err
	})
	if err != nil {
		return nil, err
	}
	buf := &Buffer{id: id, size: b.size, usage: b.usage}
	buf.setup(d, KindBuffer, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyBuffer(id) })
	})
	return buf, nil
}

// BufferView is a byte range of a buffer used for binding. A view never
// snapshots: it always reflects the current buffer contents.
type BufferView struct {
	object
	buffer *Buffer
	offset uint64
	size   uint64
}

// Buffer returns the viewed buffer.
func (v *BufferView) Buffer() *Buffer { return v.buffer }

// Offset returns the start of the range in bytes.
func (v *BufferView) Offset() uint64 { return v.offset }

// Size returns the length of the range in bytes.
func (v *BufferView) Size() uint64 { return v.size }

// BufferViewBuilder stages the configuration of a BufferView.
type BufferViewBuilder struct {
	builder[*BufferView]
	buffer       *Buffer
	label        string
	offset, size uint64

	hasLabel, hasExtent bool
}

// SetLabel sets the debug label.
func (b *BufferViewBuilder) SetLabel(label string) *BufferViewBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetExtent selects the byte range [offset, offset+size).
func (b *BufferViewBuilder) SetExtent(offset, size uint64) *BufferViewBuilder {
	if b.property("SetExtent", &b.hasExtent) {
		b.offset, b.size = offset, size
	}
	return b
}

// GetResult validates the range and creates the view.
func (b *BufferViewBuilder) GetResult() (*BufferView, error) {
	return b.finish(b.validate, b.create)
}

// viewAlignment returns the offset alignment for views of buf: the largest
// binding alignment among its usages, or the copy alignment.
func viewAlignment(buf *Buffer, limits gputypes.Limits) uint64 {
	align := uint64(copyAlignment)
	if buf.usage.Contains(BufferUsageUniform) {
		align = max(align, uint64(limits.MinUniformBufferOffsetAlignment))
	}
	if buf.usage.Contains(BufferUsageStorage) {
		align = max(align, uint64(limits.MinStorageBufferOffsetAlignment))
	}
	return align
}

func (b *BufferViewBuilder) validate() error {
	if err := checkObject(b.device, baseOf(b.buffer), "buffer"); err != nil {
		return err
	}
	if !b.hasExtent {
		return missing("extent")
	}
	buf := b.buffer
	if b.size == 0 || b.offset > buf.size || b.size > buf.size-b.offset {
		return fmt.Errorf("%w: view [%d, %d+%d) not within buffer size %d",
			ErrOutOfRange, b.offset, b.offset, b.size, buf.size)
	}
	align := viewAlignment(buf, b.device.limits)
	if !mathutil.IsPowerOfTwo(align) || !mathutil.IsAligned(b.offset, align) {
		return fmt.Errorf("%w: view offset %d must be a multiple of %d", ErrUnaligned, b.offset, align)
	}
	return nil
}

func (b *BufferViewBuilder) create() (*BufferView, error) {
	buf := b.buffer
	buf.AddRef()
	v := &BufferView{buffer: buf, offset: b.offset, size: b.size}
	v.setup(b.device, KindBufferView, b.label, buf.Release)
	return v, nil
}
