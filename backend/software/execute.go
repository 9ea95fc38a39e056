// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/gputypes"
	"golang.org/x/sync/errgroup"
)

// ErrNoKernel is returned when a dispatch uses a pipeline whose module and
// entry point have no registered kernel.
var ErrNoKernel = errors.New("software: no kernel registered")

// execState is the pass state while a stream runs.
type execState struct {
	pipeline    *computePipeline
	bindGroups  map[uint32]gpucore.BindGroupID
	attachments []gpucore.ColorAttachment
}

// Execute runs stream on the calling goroutine. Dispatches fan out to
// worker goroutines and complete before Execute moves to the next command.
func (b *Backend) Execute(stream *gpucore.CommandStream) error {
	if err := b.check(); err != nil {
		return err
	}
	b.mem.Lock()
	defer b.mem.Unlock()

	st := &execState{bindGroups: make(map[uint32]gpucore.BindGroupID)}
	for i, cmd := range stream.Commands {
		if err := b.run(st, cmd); err != nil {
			return fmt.Errorf("command %d (%T): %w", i, cmd, err)
		}
	}
	return nil
}

func (b *Backend) run(st *execState, cmd gpucore.Command) error {
	switch c := cmd.(type) {
	case gpucore.BeginComputePass:
		clear(st.bindGroups)
		st.pipeline = nil
	case gpucore.EndComputePass:
		st.pipeline = nil
	case gpucore.BeginRenderPass:
		clear(st.bindGroups)
		st.attachments = c.ColorAttachments
		for _, a := range c.ColorAttachments {
			if a.LoadOp != gputypes.LoadOpClear {
				continue
			}
			if err := b.clearView(a.View, a.ClearValue); err != nil {
				return err
			}
		}
	case gpucore.EndRenderPass:
		err := b.endRenderPass(st.attachments)
		st.attachments = nil
		return err

	case gpucore.SetComputePipeline:
		p, err := b.computePipelines.Get(c.Pipeline)
		if err != nil {
			return err
		}
		st.pipeline = p
	case gpucore.SetBindGroup:
		st.bindGroups[c.Index] = c.Group
	case gpucore.Dispatch:
		return b.dispatch(st, c)

	case gpucore.SetRenderPipeline, gpucore.SetVertexBuffer, gpucore.SetIndexBuffer:
	case gpucore.Draw, gpucore.DrawIndexed:
		b.logger().Debug("software: draw not rasterized", "cmd", fmt.Sprintf("%T", cmd))

	case gpucore.CopyBufferToBuffer:
		src, err := b.buffers.Get(c.Src)
		if err != nil {
			return err
		}
		dst, err := b.buffers.Get(c.Dst)
		if err != nil {
			return err
		}
		copy(dst[c.DstOffset:c.DstOffset+c.Size], src[c.SrcOffset:c.SrcOffset+c.Size])
	case gpucore.CopyBufferToTexture:
		return b.copyRows(c.Src, c.Layout, c.Dst, c.Size, true)
	case gpucore.CopyTextureToBuffer:
		return b.copyRows(c.Dst, c.Layout, c.Src, c.Size, false)

	default:
		return fmt.Errorf("%w: %T", gpucore.ErrUnsupported, cmd)
	}
	return nil
}

// dispatch runs every invocation of a dispatch. Workgroups are split into
// contiguous ranges, one per worker.
func (b *Backend) dispatch(st *execState, c gpucore.Dispatch) error {
	p := st.pipeline
	if p.kernel == nil {
		return fmt.Errorf("%w: %s", ErrNoKernel, p.name)
	}
	bindings, err := b.resolveBindings(st.bindGroups)
	if err != nil {
		return err
	}

	total := uint64(c.X) * uint64(c.Y) * uint64(c.Z)
	if total == 0 {
		return nil
	}
	workers := uint64(b.workers)
	if workers == 0 {
		workers = uint64(runtime.GOMAXPROCS(0))
	}
	workers = min(workers, total)
	b.logger().Debug("software: dispatch",
		"pipeline", p.name,
		"workgroups", total,
		"workers", workers)

	var g errgroup.Group
	chunk := (total + workers - 1) / workers
	for lo := uint64(0); lo < total; lo += chunk {
		hi := min(lo+chunk, total)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("software: kernel %s panicked: %v", p.name, r)
				}
			}()
			inv := Invocation{
				NumWorkgroups: [3]uint32{c.X, c.Y, c.Z},
				WorkgroupSize: p.workgroupSize,
				bindings:      bindings,
			}
			for w := lo; w < hi; w++ {
				inv.WorkgroupID = [3]uint32{
					uint32(w % uint64(c.X)),
					uint32(w / uint64(c.X) % uint64(c.Y)),
					uint32(w / (uint64(c.X) * uint64(c.Y))),
				}
				runWorkgroup(p.kernel, &inv)
			}
			return nil
		})
	}
	return g.Wait()
}

func runWorkgroup(k Kernel, inv *Invocation) {
	size := inv.WorkgroupSize
	for z := range size[2] {
		for y := range size[1] {
			for x := range size[0] {
				inv.LocalID = [3]uint32{x, y, z}
				for i := range 3 {
					inv.GlobalID[i] = inv.WorkgroupID[i]*size[i] + inv.LocalID[i]
				}
				k(inv)
			}
		}
	}
}

// resolveBindings maps every bound buffer range to its host bytes.
func (b *Backend) resolveBindings(groups map[uint32]gpucore.BindGroupID) (map[bindingKey][]byte, error) {
	out := make(map[bindingKey][]byte)
	for index, id := range groups {
		entries, err := b.bindGroups.Get(id)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Buffer == gpucore.InvalidID {
				continue
			}
			buf, err := b.buffers.Get(e.Buffer)
			if err != nil {
				return nil, err
			}
			out[bindingKey{index, e.Binding}] = buf[e.Offset : e.Offset+e.Size : e.Offset+e.Size]
		}
	}
	return out, nil
}

// copyRows moves texel rows between a buffer and a texture region.
func (b *Backend) copyRows(bufID gpucore.BufferID, layout gpucore.BufferLayout, loc gpucore.TextureLocation, size gputypes.Extent3D, toTexture bool) error {
	buf, err := b.buffers.Get(bufID)
	if err != nil {
		return err
	}
	t, err := b.textures.Get(loc.Texture)
	if err != nil {
		return err
	}
	level := gpucore.MipExtent(t.desc.Size, t.desc.Dimension, loc.MipLevel)
	data := t.levels[loc.MipLevel]

	rows := layout.RowsPerImage
	if rows == 0 {
		rows = size.Height
	}
	rowBytes := uint64(size.Width) * uint64(t.texel)
	for z := range uint64(size.DepthOrArrayLayers) {
		for y := range uint64(size.Height) {
			bo := layout.Offset + (z*uint64(rows)+y)*uint64(layout.BytesPerRow)
			tz := uint64(loc.Origin.Z) + z
			ty := uint64(loc.Origin.Y) + y
			to := ((tz*uint64(level.Height)+ty)*uint64(level.Width) + uint64(loc.Origin.X)) * uint64(t.texel)
			if toTexture {
				copy(data[to:to+rowBytes], buf[bo:bo+rowBytes])
			} else {
				copy(buf[bo:bo+rowBytes], data[to:to+rowBytes])
			}
		}
	}
	return nil
}

// viewImage returns the texture and the bytes of the mip level and array
// layers a view renders to. A 3D view covers every depth slice.
func (b *Backend) viewImage(id gpucore.TextureViewID) (*texture, []byte, error) {
	v, err := b.views.Get(id)
	if err != nil {
		return nil, nil, err
	}
	t, err := b.textures.Get(v.texture)
	if err != nil {
		return nil, nil, err
	}
	data := t.levels[v.baseLevel]
	if t.desc.Dimension == gputypes.TextureDimension3D {
		return t, data, nil
	}
	ext := gpucore.MipExtent(t.desc.Size, t.desc.Dimension, v.baseLevel)
	layers := v.layers
	if layers == 0 {
		layers = ext.DepthOrArrayLayers - v.baseLayer
	}
	layer := uint64(ext.Width) * uint64(ext.Height) * uint64(t.texel)
	lo := uint64(v.baseLayer) * layer
	return t, data[lo : lo+uint64(layers)*layer], nil
}

func (b *Backend) clearView(id gpucore.TextureViewID, c gputypes.Color) error {
	t, data, err := b.viewImage(id)
	if err != nil {
		return err
	}
	texel, err := encodeColor(t.desc.Format, c)
	if err != nil {
		return err
	}
	for i := 0; i < len(data); i += len(texel) {
		copy(data[i:], texel)
	}
	return nil
}

// endRenderPass resolves attachments and applies discard store ops.
func (b *Backend) endRenderPass(attachments []gpucore.ColorAttachment) error {
	for _, a := range attachments {
		_, src, err := b.viewImage(a.View)
		if err != nil {
			return err
		}
		if a.ResolveTarget != gpucore.InvalidID {
			_, dst, err := b.viewImage(a.ResolveTarget)
			if err != nil {
				return err
			}
			copy(dst, src)
		}
		if a.StoreOp == gputypes.StoreOpDiscard {
			clear(src)
		}
	}
	return nil
}
