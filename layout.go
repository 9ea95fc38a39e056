// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/forge/gpucore"
)

// BindingType is the kind of resource bound at a layout index.
type BindingType = gpucore.BindingType

// Binding types.
const (
	BindingTypeUniformBuffer         = gpucore.BindingTypeUniformBuffer
	BindingTypeStorageBuffer         = gpucore.BindingTypeStorageBuffer
	BindingTypeReadOnlyStorageBuffer = gpucore.BindingTypeReadOnlyStorageBuffer
	BindingTypeSampler               = gpucore.BindingTypeSampler
	BindingTypeSampledTexture        = gpucore.BindingTypeSampledTexture
)

// BindGroupLayoutEntry declares one binding index of a layout.
type BindGroupLayoutEntry = gpucore.BindGroupLayoutEntry

// BindGroupLayout declares, per binding index, the resource kind and the
// stages that can see it.
type BindGroupLayout struct {
	object
	id      gpucore.BindGroupLayoutID
	entries []BindGroupLayoutEntry // sorted by binding
}

// Entries returns the declared bindings in index order.
func (l *BindGroupLayout) Entries() []BindGroupLayoutEntry {
	return slices.Clone(l.entries)
}

// entry returns the declaration of binding, if any.
func (l *BindGroupLayout) entry(binding uint32) (BindGroupLayoutEntry, bool) {
	i, ok := slices.BinarySearchFunc(l.entries, binding, func(e BindGroupLayoutEntry, b uint32) int {
		return cmp.Compare(e.Binding, b)
	})
	if !ok {
		return BindGroupLayoutEntry{}, false
	}
	return l.entries[i], true
}

// CompatibleWith reports whether bind groups created against other can be
// used where l is expected: the same layout or an identical binding table.
func (l *BindGroupLayout) CompatibleWith(other *BindGroupLayout) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil {
		return false
	}
	return slices.Equal(l.entries, other.entries)
}

// BindGroupLayoutBuilder stages the configuration of a BindGroupLayout.
type BindGroupLayoutBuilder struct {
	builder[*BindGroupLayout]
	label    string
	hasLabel bool
	entries  map[uint32]BindGroupLayoutEntry
}

// CreateBindGroupLayoutBuilder returns a builder for a new layout. A layout
// without bindings is valid.
func (d *Device) CreateBindGroupLayoutBuilder() *BindGroupLayoutBuilder {
	return &BindGroupLayoutBuilder{
		builder: newBuilder[*BindGroupLayout](d, "BindGroupLayoutBuilder"),
		entries: make(map[uint32]BindGroupLayoutEntry),
	}
}

// SetLabel sets the debug label.
func (b *BindGroupLayoutBuilder) SetLabel(label string) *BindGroupLayoutBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetBindingsType declares count consecutive bindings starting at start,
// all of the given kind and visibility. Declaring an index twice is a usage
// error.
func (b *BindGroupLayoutBuilder) SetBindingsType(visibility ShaderStages, kind BindingType, start, count uint32) *BindGroupLayoutBuilder {
	const op = "SetBindingsType"
	if !b.open(op) {
		return b
	}
	if count == 0 || start+count < start {
		b.misuse(op, fmt.Errorf("%w: binding range start %d count %d", ErrOutOfRange, start, count))
		return b
	}
	for i := start; i < start+count; i++ {
		if _, dup := b.entries[i]; dup {
			b.misuse(op, fmt.Errorf("%w: binding %d", ErrPropertySetTwice, i))
			return b
		}
	}
	for i := start; i < start+count; i++ {
		b.entries[i] = BindGroupLayoutEntry{Binding: i, Visibility: visibility, Type: kind}
	}
	return b
}

// GetResult validates the declarations and creates the layout.
func (b *BindGroupLayoutBuilder) GetResult() (*BindGroupLayout, error) {
	return b.finish(b.validate, func() (*BindGroupLayout, error) {
		return b.device.createBindGroupLayout(b.label, b.sorted())
	})
}

func (b *BindGroupLayoutBuilder) sorted() []BindGroupLayoutEntry {
	entries := slices.Collect(maps.Values(b.entries))
	slices.SortFunc(entries, func(x, y BindGroupLayoutEntry) int {
		return cmp.Compare(x.Binding, y.Binding)
	})
	return entries
}

func (b *BindGroupLayoutBuilder) validate() error {
	maxBindings := b.device.limits.MaxBindingsPerBindGroup
	for _, e := range b.sorted() {
		switch {
		case e.Binding >= maxBindings:
			return fmt.Errorf("%w: binding %d exceeds limit %d", ErrOutOfRange, e.Binding, maxBindings)
		case e.Visibility == ShaderStageNone:
			return fmt.Errorf("%w: binding %d has no visible stage", ErrInvalidStage, e.Binding)
		case e.Visibility&^(ShaderStageVertex|ShaderStageFragment|ShaderStageCompute) != 0:
			return fmt.Errorf("%w: binding %d visibility %#x", ErrInvalidStage, e.Binding, uint32(e.Visibility))
		case !e.Type.Valid():
			return fmt.Errorf("%w: binding %d has type %s", ErrOutOfRange, e.Binding, e.Type)
		}
	}
	return nil
}

// createBindGroupLayout creates a layout from validated, sorted entries.
func (d *Device) createBindGroupLayout(label string, entries []BindGroupLayoutEntry) (*BindGroupLayout, error) {
	desc := &gpucore.BindGroupLayoutDesc{Label: label, Entries: entries}
	var id gpucore.BindGroupLayoutID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateBindGroupLayout(desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	l := &BindGroupLayout{id: id, entries: entries}
	l.setup(d, KindBindGroupLayout, label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyBindGroupLayout(id) })
	})
	return l, nil
}

// PipelineLayout is the ordered list of bind group layouts a pipeline
// expects. Group indices without an explicit layout hold an empty layout.
type PipelineLayout struct {
	object
	id      gpucore.PipelineLayoutID
	layouts []*BindGroupLayout
}

// NumBindGroups returns the number of group indices the layout declares.
func (p *PipelineLayout) NumBindGroups() int { return len(p.layouts) }

// BindGroupLayout returns the layout expected at group index i, or nil when
// i is beyond the declared groups.
func (p *PipelineLayout) BindGroupLayout(i int) *BindGroupLayout {
	if i < 0 || i >= len(p.layouts) {
		return nil
	}
	return p.layouts[i]
}

// PipelineLayoutBuilder stages the configuration of a PipelineLayout.
type PipelineLayoutBuilder struct {
	builder[*PipelineLayout]
	label    string
	hasLabel bool
	layouts  map[uint32]*BindGroupLayout
}

// CreatePipelineLayoutBuilder returns a builder for a new pipeline layout.
func (d *Device) CreatePipelineLayoutBuilder() *PipelineLayoutBuilder {
	return &PipelineLayoutBuilder{
		builder: newBuilder[*PipelineLayout](d, "PipelineLayoutBuilder"),
		layouts: make(map[uint32]*BindGroupLayout),
	}
}

// SetLabel sets the debug label.
func (b *PipelineLayoutBuilder) SetLabel(label string) *PipelineLayoutBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetBindGroupLayout sets the layout expected at group index.
func (b *PipelineLayoutBuilder) SetBindGroupLayout(index uint32, layout *BindGroupLayout) *PipelineLayoutBuilder {
	const op = "SetBindGroupLayout"
	if !b.open(op) {
		return b
	}
	if err := checkObject(b.device, baseOf(layout), "bind group layout"); err != nil {
		b.misuse(op, err)
		return b
	}
	if _, dup := b.layouts[index]; dup {
		b.misuse(op, fmt.Errorf("%w: group %d", ErrPropertySetTwice, index))
		return b
	}
	b.layouts[index] = layout
	return b
}

// GetResult validates the group indices and creates the layout.
func (b *PipelineLayoutBuilder) GetResult() (*PipelineLayout, error) {
	return b.finish(b.validate, b.create)
}

func (b *PipelineLayoutBuilder) validate() error {
	maxGroups := b.device.limits.MaxBindGroups
	for index, l := range b.layouts {
		if index >= maxGroups {
			return fmt.Errorf("%w: group %d exceeds limit %d", ErrOutOfRange, index, maxGroups)
		}
		if !l.alive() {
			return fmt.Errorf("%w: layout at group %d was released", ErrInvalidObject, index)
		}
	}
	return nil
}

func (b *PipelineLayoutBuilder) create() (*PipelineLayout, error) {
	d := b.device
	n := 0
	for index := range b.layouts {
		n = max(n, int(index)+1)
	}

	// Gaps get the shared empty layout; every slot owns one reference.
	layouts := make([]*BindGroupLayout, n)
	var err error
	for i := range layouts {
		if l, ok := b.layouts[uint32(i)]; ok {
			l.AddRef()
			layouts[i] = l
			continue
		}
		if layouts[i], err = d.emptyBindGroupLayout(); err != nil {
			releaseLayouts(layouts)
			return nil, err
		}
	}

	ids := make([]gpucore.BindGroupLayoutID, n)
	for i, l := range layouts {
		ids[i] = l.id
	}
	var id gpucore.PipelineLayoutID
	err = d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{Label: b.label, BindGroupLayouts: ids})
		return err
	})
	if err != nil {
		releaseLayouts(layouts)
		return nil, err
	}

	p := &PipelineLayout{id: id, layouts: layouts}
	p.setup(d, KindPipelineLayout, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyPipelineLayout(id) })
		releaseLayouts(layouts)
	})
	return p, nil
}

func releaseLayouts(layouts []*BindGroupLayout) {
	for _, l := range layouts {
		if l != nil {
			l.Release()
		}
	}
}
