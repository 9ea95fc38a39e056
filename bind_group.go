// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/forge/gpucore"
)

// BindGroupUsage controls whether a bind group's bindings may change after
// creation.
type BindGroupUsage uint8

const (
	// BindGroupUsageFrozen bind groups never change. Backends may build
	// their binding tables once.
	BindGroupUsageFrozen BindGroupUsage = iota + 1

	// BindGroupUsageDynamic bind groups may be rebound with Rebind.
	// Command buffers keep the bindings that were current when they were
	// recorded.
	BindGroupUsageDynamic
)

// String returns the usage name.
func (u BindGroupUsage) String() string {
	switch u {
	case BindGroupUsageFrozen:
		return "Frozen"
	case BindGroupUsageDynamic:
		return "Dynamic"
	default:
		return fmt.Sprintf("BindGroupUsage(%d)", uint8(u))
	}
}

// binding is the resource bound at one index. Exactly one field is set.
type binding struct {
	buffer  *BufferView
	texture *TextureView
	sampler *Sampler
}

func (b binding) kind() string {
	switch {
	case b.buffer != nil:
		return "buffer view"
	case b.texture != nil:
		return "texture view"
	default:
		return "sampler"
	}
}

func (b binding) holder() refHolder {
	switch {
	case b.buffer != nil:
		return b.buffer
	case b.texture != nil:
		return b.texture
	default:
		return b.sampler
	}
}

func (b binding) base() *object {
	switch {
	case b.buffer != nil:
		return &b.buffer.object
	case b.texture != nil:
		return &b.texture.object
	default:
		return &b.sampler.object
	}
}

// bindingSet is one immutable generation of a bind group's bindings with
// its backend bind group. It holds a reference on every bound resource.
type bindingSet struct {
	RefCounted
	id       gpucore.BindGroupID
	bindings map[uint32]binding
}

// BindGroup binds concrete resources to the slots of a BindGroupLayout.
type BindGroup struct {
	object
	layout *BindGroupLayout
	usage  BindGroupUsage

	mu      sync.Mutex
	current *bindingSet
}

// Layout returns the layout the group was created against.
func (g *BindGroup) Layout() *BindGroupLayout { return g.layout }

// Usage returns the group's usage.
func (g *BindGroup) Usage() BindGroupUsage { return g.usage }

// snapshot returns the current binding set with a reference for the caller.
func (g *BindGroup) snapshot() *bindingSet {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current.AddRef()
	return g.current
}

// Rebind replaces the buffer views bound at consecutive indices starting at
// start. Only Dynamic bind groups can be rebound; command buffers recorded
// earlier keep using the previous bindings.
func (g *BindGroup) Rebind(start uint32, views ...*BufferView) error {
	const op = "Rebind"
	d := g.device
	if !g.alive() {
		return d.fail(ErrorKindUsage, "BindGroup", op, ErrInvalidObject)
	}
	if g.usage != BindGroupUsageDynamic {
		return d.fail(ErrorKindUsage, "BindGroup", op, fmt.Errorf("%w: %q", ErrBindGroupFrozen, g.label))
	}
	for i, v := range views {
		if err := checkObject(d, baseOf(v), "buffer view"); err != nil {
			return d.fail(ErrorKindUsage, "BindGroup", op, err)
		}
		if start+uint32(i) < start {
			return d.fail(ErrorKindUsage, "BindGroup", op, fmt.Errorf("%w: binding index overflow", ErrOutOfRange))
		}
	}
	if kind, err := d.usable(); err != nil {
		return d.fail(kind, "BindGroup", op, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	bindings := maps.Clone(g.current.bindings)
	for i, v := range views {
		bindings[start+uint32(i)] = binding{buffer: v}
	}
	if err := validateBindings(d, g.layout, bindings); err != nil {
		return d.fail(ErrorKindValidation, "BindGroup", op, err)
	}
	set, err := d.createBindingSet(g.label, g.layout, bindings)
	if err != nil {
		return d.fail(ErrorKindBackend, "BindGroup", op, err)
	}
	old := g.current
	g.current = set
	old.Release()
	Logger().Debug("forge: bind group rebound", "label", g.label, "start", start, "count", len(views))
	return nil
}

// BindGroupBuilder stages the configuration of a BindGroup.
// Layout and usage are required, and every binding the layout declares
// must be supplied with a resource of the declared kind.
type BindGroupBuilder struct {
	builder[*BindGroup]
	label    string
	layout   *BindGroupLayout
	usage    BindGroupUsage
	bindings map[uint32]binding

	hasLabel, hasLayout, hasUsage bool
}

// CreateBindGroupBuilder returns a builder for a new bind group.
func (d *Device) CreateBindGroupBuilder() *BindGroupBuilder {
	return &BindGroupBuilder{
		builder:  newBuilder[*BindGroup](d, "BindGroupBuilder"),
		bindings: make(map[uint32]binding),
	}
}

// SetLabel sets the debug label.
func (b *BindGroupBuilder) SetLabel(label string) *BindGroupBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetLayout sets the layout the group binds to.
func (b *BindGroupBuilder) SetLayout(layout *BindGroupLayout) *BindGroupBuilder {
	const op = "SetLayout"
	if !b.property(op, &b.hasLayout) {
		return b
	}
	if err := checkObject(b.device, baseOf(layout), "bind group layout"); err != nil {
		b.misuse(op, err)
		return b
	}
	b.layout = layout
	return b
}

// SetUsage sets whether the group is frozen or dynamic.
func (b *BindGroupBuilder) SetUsage(usage BindGroupUsage) *BindGroupBuilder {
	if b.property("SetUsage", &b.hasUsage) {
		b.usage = usage
	}
	return b
}

// SetBufferViews binds buffer views at consecutive indices from start.
func (b *BindGroupBuilder) SetBufferViews(start uint32, views ...*BufferView) *BindGroupBuilder {
	for i, v := range views {
		if !b.bind("SetBufferViews", start, i, baseOf(v), binding{buffer: v}) {
			break
		}
	}
	return b
}

// SetTextureViews binds texture views at consecutive indices from start.
func (b *BindGroupBuilder) SetTextureViews(start uint32, views ...*TextureView) *BindGroupBuilder {
	for i, v := range views {
		if !b.bind("SetTextureViews", start, i, baseOf(v), binding{texture: v}) {
			break
		}
	}
	return b
}

// SetSamplers binds samplers at consecutive indices from start.
func (b *BindGroupBuilder) SetSamplers(start uint32, samplers ...*Sampler) *BindGroupBuilder {
	for i, s := range samplers {
		if !b.bind("SetSamplers", start, i, baseOf(s), binding{sampler: s}) {
			break
		}
	}
	return b
}

func (b *BindGroupBuilder) bind(op string, start uint32, i int, o *object, res binding) bool {
	if !b.open(op) {
		return false
	}
	index := start + uint32(i)
	if index < start {
		b.misuse(op, fmt.Errorf("%w: binding index overflow", ErrOutOfRange))
		return false
	}
	if err := checkObject(b.device, o, fmt.Sprintf("binding %d", index)); err != nil {
		b.misuse(op, err)
		return false
	}
	if _, dup := b.bindings[index]; dup {
		b.misuse(op, fmt.Errorf("%w: binding %d", ErrPropertySetTwice, index))
		return false
	}
	b.bindings[index] = res
	return true
}

// GetResult checks the bindings against the layout and creates the group.
func (b *BindGroupBuilder) GetResult() (*BindGroup, error) {
	return b.finish(b.validate, b.create)
}

func (b *BindGroupBuilder) validate() error {
	switch {
	case !b.hasLayout:
		return missing("layout")
	case !b.hasUsage:
		return missing("usage")
	case b.usage != BindGroupUsageFrozen && b.usage != BindGroupUsageDynamic:
		return fmt.Errorf("%w: bind group usage %s", ErrOutOfRange, b.usage)
	case !b.layout.alive():
		return fmt.Errorf("%w: layout was released", ErrInvalidObject)
	}
	return validateBindings(b.device, b.layout, b.bindings)
}

// validateBindings checks that bindings supply exactly the indices layout
// declares, each with a resource of the declared kind and usage.
func validateBindings(d *Device, layout *BindGroupLayout, bindings map[uint32]binding) error {
	for _, e := range layout.entries {
		res, ok := bindings[e.Binding]
		if !ok {
			return fmt.Errorf("%w: binding %d (%s) is not bound", ErrLayoutMismatch, e.Binding, e.Type)
		}
		if !res.base().alive() {
			return fmt.Errorf("%w: %s at binding %d was released", ErrInvalidObject, res.kind(), e.Binding)
		}
		if err := checkBinding(d, e, res); err != nil {
			return err
		}
	}
	for _, index := range slices.Sorted(maps.Keys(bindings)) {
		if _, ok := layout.entry(index); !ok {
			return fmt.Errorf("%w: binding %d is not declared by the layout", ErrLayoutMismatch, index)
		}
	}
	return nil
}

// checkBinding validates one resource against its declaration.
func checkBinding(d *Device, e BindGroupLayoutEntry, res binding) error {
	wrongKind := func() error {
		return fmt.Errorf("%w: binding %d expects %s, got %s", ErrLayoutMismatch, e.Binding, e.Type, res.kind())
	}
	lim := d.limits
	switch e.Type {
	case BindingTypeUniformBuffer, BindingTypeStorageBuffer, BindingTypeReadOnlyStorageBuffer:
		v := res.buffer
		if v == nil {
			return wrongKind()
		}
		want, maxSize := BufferUsageStorage, lim.MaxStorageBufferBindingSize
		if e.Type == BindingTypeUniformBuffer {
			want, maxSize = BufferUsageUniform, lim.MaxUniformBufferBindingSize
		}
		if !v.buffer.usage.Contains(want) {
			return fmt.Errorf("%w: binding %d needs a buffer with %s usage", ErrUsageMismatch, e.Binding, e.Type)
		}
		if v.size > maxSize {
			return fmt.Errorf("%w: binding %d size %d exceeds limit %d", ErrOutOfRange, e.Binding, v.size, maxSize)
		}
	case BindingTypeSampledTexture:
		if res.texture == nil {
			return wrongKind()
		}
		if !res.texture.texture.usage.Contains(TextureUsageTextureBinding) {
			return fmt.Errorf("%w: binding %d needs a texture with TextureBinding usage", ErrUsageMismatch, e.Binding)
		}
	case BindingTypeSampler:
		if res.sampler == nil {
			return wrongKind()
		}
	}
	return nil
}

func (b *BindGroupBuilder) create() (*BindGroup, error) {
	d := b.device
	set, err := d.createBindingSet(b.label, b.layout, maps.Clone(b.bindings))
	if err != nil {
		return nil, err
	}
	layout := b.layout
	layout.AddRef()
	g := &BindGroup{layout: layout, usage: b.usage, current: set}
	g.setup(d, KindBindGroup, b.label, func() {
		g.mu.Lock()
		cur := g.current
		g.current = nil
		g.mu.Unlock()
		cur.Release()
		layout.Release()
	})
	return g, nil
}

// createBindingSet creates the backend bind group for validated bindings
// and takes a reference on every bound resource.
func (d *Device) createBindingSet(label string, layout *BindGroupLayout, bindings map[uint32]binding) (*bindingSet, error) {
	indices := slices.Sorted(maps.Keys(bindings))
	entries := make([]gpucore.BindGroupEntry, 0, len(indices))
	for _, index := range indices {
		res := bindings[index]
		e := gpucore.BindGroupEntry{Binding: index}
		switch {
		case res.buffer != nil:
			e.Buffer = res.buffer.buffer.id
			e.Offset = res.buffer.offset
			e.Size = res.buffer.size
		case res.texture != nil:
			e.TextureView = res.texture.id
		default:
			e.Sampler = res.sampler.id
		}
		entries = append(entries, e)
	}

	desc := &gpucore.BindGroupDesc{Label: label, Layout: layout.id, Entries: entries}
	var id gpucore.BindGroupID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateBindGroup(desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, res := range bindings {
		res.holder().AddRef()
	}
	set := &bindingSet{id: id, bindings: bindings}
	set.init(func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyBindGroup(id) })
		for _, res := range bindings {
			res.holder().Release()
		}
	})
	return set, nil
}
