// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Execute encodes stream into a single HAL command buffer, submits it and
// waits for the device to go idle.
func (b *Backend) Execute(stream *gpucore.CommandStream) error {
	if err := b.check(); err != nil {
		return err
	}
	return b.submit(stream.Label, func(enc hal.CommandEncoder) error {
		e := encoder{b: b, enc: enc}
		for i, cmd := range stream.Commands {
			if err := e.encode(cmd); err != nil {
				return fmt.Errorf("command %d (%T): %w", i, cmd, err)
			}
		}
		return nil
	})
}

// submit records one command buffer with fn and runs it to completion.
func (b *Backend) submit(label string, fn func(hal.CommandEncoder) error) error {
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", translate(err))
	}
	defer enc.Destroy()

	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", translate(err))
	}
	if err := fn(enc); err != nil {
		enc.DiscardEncoding()
		return err
	}
	cb, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", translate(err))
	}
	defer b.device.FreeCommandBuffer(cb)

	if _, err := b.queue.Submit([]hal.CommandBuffer{cb}); err != nil {
		return fmt.Errorf("submit: %w", translate(err))
	}
	if err := b.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle: %w", translate(err))
	}
	b.logger().Debug("native: submitted", "label", label)
	return nil
}

// encoder translates gpucore commands into HAL encoder calls. At most one
// of compute and render is non-nil.
type encoder struct {
	b       *Backend
	enc     hal.CommandEncoder
	compute hal.ComputePassEncoder
	render  hal.RenderPassEncoder
}

func (e *encoder) encode(cmd gpucore.Command) error {
	b := e.b
	switch c := cmd.(type) {
	case gpucore.BeginComputePass:
		e.compute = e.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: c.Label})
	case gpucore.EndComputePass:
		e.compute.End()
		e.compute = nil
	case gpucore.BeginRenderPass:
		desc, err := e.renderPass(c)
		if err != nil {
			return err
		}
		e.render = e.enc.BeginRenderPass(desc)
	case gpucore.EndRenderPass:
		e.render.End()
		e.render = nil

	case gpucore.SetComputePipeline:
		p, err := b.computePipelines.Get(c.Pipeline)
		if err != nil {
			return err
		}
		e.compute.SetPipeline(p)
	case gpucore.SetRenderPipeline:
		p, err := b.renderPipelines.Get(c.Pipeline)
		if err != nil {
			return err
		}
		e.render.SetPipeline(p)
	case gpucore.SetBindGroup:
		g, err := b.bindGroups.Get(c.Group)
		if err != nil {
			return err
		}
		if e.compute != nil {
			e.compute.SetBindGroup(c.Index, g, nil)
		} else {
			e.render.SetBindGroup(c.Index, g, nil)
		}
	case gpucore.SetVertexBuffer:
		buf, err := b.buffers.Get(c.Buffer)
		if err != nil {
			return err
		}
		e.render.SetVertexBuffer(c.Slot, buf.raw, c.Offset)
	case gpucore.SetIndexBuffer:
		buf, err := b.buffers.Get(c.Buffer)
		if err != nil {
			return err
		}
		e.render.SetIndexBuffer(buf.raw, c.Format, c.Offset)

	case gpucore.Dispatch:
		e.compute.Dispatch(c.X, c.Y, c.Z)
	case gpucore.Draw:
		e.render.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
	case gpucore.DrawIndexed:
		e.render.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.BaseVertex, c.FirstInstance)

	case gpucore.CopyBufferToBuffer:
		src, err := b.buffers.Get(c.Src)
		if err != nil {
			return err
		}
		dst, err := b.buffers.Get(c.Dst)
		if err != nil {
			return err
		}
		e.enc.CopyBufferToBuffer(src.raw, dst.raw, []hal.BufferCopy{{
			SrcOffset: c.SrcOffset,
			DstOffset: c.DstOffset,
			Size:      c.Size,
		}})
	case gpucore.CopyBufferToTexture:
		src, err := b.buffers.Get(c.Src)
		if err != nil {
			return err
		}
		dst, err := b.textures.Get(c.Dst.Texture)
		if err != nil {
			return err
		}
		e.enc.CopyBufferToTexture(src.raw, dst, []hal.BufferTextureCopy{textureCopy(dst, c.Layout, c.Dst, c.Size)})
	case gpucore.CopyTextureToBuffer:
		src, err := b.textures.Get(c.Src.Texture)
		if err != nil {
			return err
		}
		dst, err := b.buffers.Get(c.Dst)
		if err != nil {
			return err
		}
		e.enc.CopyTextureToBuffer(src, dst.raw, []hal.BufferTextureCopy{textureCopy(src, c.Layout, c.Src, c.Size)})

	default:
		return fmt.Errorf("%w: %T", gpucore.ErrUnsupported, cmd)
	}
	return nil
}

func (e *encoder) renderPass(c gpucore.BeginRenderPass) (*hal.RenderPassDescriptor, error) {
	attachments := make([]hal.RenderPassColorAttachment, len(c.ColorAttachments))
	for i, a := range c.ColorAttachments {
		view, err := e.b.views.Get(a.View)
		if err != nil {
			return nil, err
		}
		attachments[i] = hal.RenderPassColorAttachment{
			View:       view,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if a.ResolveTarget != gpucore.InvalidID {
			if attachments[i].ResolveTarget, err = e.b.views.Get(a.ResolveTarget); err != nil {
				return nil, err
			}
		}
	}
	return &hal.RenderPassDescriptor{Label: c.Label, ColorAttachments: attachments}, nil
}

func textureCopy(tex hal.Texture, layout gpucore.BufferLayout, loc gpucore.TextureLocation, size gputypes.Extent3D) hal.BufferTextureCopy {
	return hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{
			Offset:       layout.Offset,
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.RowsPerImage,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  tex,
			MipLevel: loc.MipLevel,
			Origin:   hal.Origin3D{X: loc.Origin.X, Y: loc.Origin.Y, Z: loc.Origin.Z},
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{
			Width:              size.Width,
			Height:             size.Height,
			DepthOrArrayLayers: size.DepthOrArrayLayers,
		},
	}
}
