// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command forgedemo copies buffers through a compute pipeline on a forge
// device and verifies the result.
//
// Several encoders record and submit concurrently, each with its own
// buffers and bind group:
//
//	forgedemo -backend software -n 65536 -encoders 8
//	forgedemo -config device.toml -v
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gogpu/forge"
	"github.com/gogpu/forge/backend/software"
	"golang.org/x/sync/errgroup"
)

const copyWGSL = `
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if id.x < arrayLength(&dst) {
        dst[id.x] = src[id.x];
    }
}
`

const workgroupSize = 64

func init() {
	software.RegisterKernel("copy", "main", func(inv *software.Invocation) {
		i := inv.Index()
		if i < inv.Len(0, 1) {
			inv.SetUint32(0, 1, i, inv.Uint32(0, 0, i))
		}
	})
}

func main() {
	var (
		backend  = flag.String("backend", software.Name, "backend name; empty selects the best available")
		n        = flag.Int("n", 4096, "words per buffer")
		encoders = flag.Int("encoders", 4, "concurrent encoders")
		config   = flag.String("config", "", "device config file (.toml or .yaml), overrides -backend")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	forge.SetLogger(log)

	if err := run(log, *backend, *config, *n, *encoders); err != nil {
		log.Error("forgedemo failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, backend, config string, n, encoders int) error {
	if n <= 0 || encoders <= 0 {
		return fmt.Errorf("-n and -encoders must be positive")
	}

	var reported atomic.Int32
	onError := forge.WithErrorCallback(func(e *forge.Error) {
		reported.Add(1)
		log.Warn("device error", "kind", e.Kind.String(), "object", e.Object, "op", e.Op, "err", e.Err)
	})

	var d *forge.Device
	var err error
	if config != "" {
		cfg, cerr := forge.LoadConfig(config)
		if cerr != nil {
			return cerr
		}
		d, err = forge.OpenDeviceFromConfig(cfg, onError)
	} else {
		d, err = forge.OpenDevice(backend, onError, forge.WithLabel("forgedemo"))
	}
	if err != nil {
		return err
	}
	defer d.Close()

	p, layout, err := newCopyPipeline(d)
	if err != nil {
		return err
	}
	defer p.Release()
	defer layout.Release()

	start := time.Now()
	jobs := make([]*job, encoders)
	for i := range jobs {
		j, err := newJob(d, layout, i, n)
		if err != nil {
			return err
		}
		defer j.release()
		jobs[i] = j
	}

	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error { return j.submit(d, p) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := d.Queue().WaitIdle(ctx); err != nil {
		return err
	}

	for _, j := range jobs {
		if err := j.verify(); err != nil {
			return err
		}
	}
	if c := reported.Load(); c != 0 {
		return fmt.Errorf("%d device errors reported", c)
	}
	log.Info("copies verified",
		"backend", d.Backend(),
		"encoders", encoders,
		"words", n,
		"elapsed", time.Since(start))
	return nil
}

// newCopyPipeline builds the copy pipeline and returns it with its bind
// group layout.
func newCopyPipeline(d *forge.Device) (*forge.ComputePipeline, *forge.BindGroupLayout, error) {
	layout, err := d.CreateBindGroupLayoutBuilder().
		SetLabel("copy").
		SetBindingsType(forge.ShaderStageCompute, forge.BindingTypeReadOnlyStorageBuffer, 0, 1).
		SetBindingsType(forge.ShaderStageCompute, forge.BindingTypeStorageBuffer, 1, 1).
		GetResult()
	if err != nil {
		return nil, nil, err
	}
	pl, err := d.CreatePipelineLayoutBuilder().SetBindGroupLayout(0, layout).GetResult()
	if err != nil {
		layout.Release()
		return nil, nil, err
	}
	defer pl.Release()
	m, err := d.CreateShaderModuleBuilder().SetLabel("copy").SetWGSL(copyWGSL).GetResult()
	if err != nil {
		layout.Release()
		return nil, nil, err
	}
	defer m.Release()
	p, err := d.CreateComputePipelineBuilder().
		SetLabel("copy").
		SetLayout(pl).
		SetStage(forge.ShaderStageCompute, m, "main").
		GetResult()
	if err != nil {
		layout.Release()
		return nil, nil, err
	}
	return p, layout, nil
}

// job is the workload of one encoder.
type job struct {
	index    int
	n        int
	src, dst *forge.Buffer
	group    *forge.BindGroup
}

func newJob(d *forge.Device, layout *forge.BindGroupLayout, index, n int) (*job, error) {
	size := uint64(4 * n)
	j := &job{index: index, n: n}
	var err error
	j.src, err = d.CreateBufferBuilder().
		SetLabel(fmt.Sprintf("src %d", index)).
		SetSize(size).
		SetAllowedUsage(forge.BufferUsageStorage | forge.BufferUsageCopyDst).
		GetResult()
	if err != nil {
		return nil, err
	}
	j.dst, err = d.CreateBufferBuilder().
		SetLabel(fmt.Sprintf("dst %d", index)).
		SetSize(size).
		SetAllowedUsage(forge.BufferUsageStorage | forge.BufferUsageCopySrc).
		GetResult()
	if err != nil {
		j.release()
		return nil, err
	}

	data := make([]byte, 0, size)
	for i := range n {
		data = binary.LittleEndian.AppendUint32(data, j.word(i))
	}
	if err := j.src.SetSubData(0, data); err != nil {
		j.release()
		return nil, err
	}

	sv, err := j.src.CreateBufferViewBuilder().SetExtent(0, size).GetResult()
	if err != nil {
		j.release()
		return nil, err
	}
	defer sv.Release()
	dv, err := j.dst.CreateBufferViewBuilder().SetExtent(0, size).GetResult()
	if err != nil {
		j.release()
		return nil, err
	}
	defer dv.Release()
	j.group, err = d.CreateBindGroupBuilder().
		SetLayout(layout).
		SetUsage(forge.BindGroupUsageFrozen).
		SetBufferViews(0, sv, dv).
		GetResult()
	if err != nil {
		j.release()
		return nil, err
	}
	return j, nil
}

func (j *job) word(i int) uint32 { return uint32(j.index)<<24 | uint32(i) }

// submit records and submits the copy dispatch.
func (j *job) submit(d *forge.Device, p *forge.ComputePipeline) error {
	groups := (uint32(j.n) + workgroupSize - 1) / workgroupSize
	cb, err := d.CreateCommandBufferBuilder().
		SetLabel(fmt.Sprintf("copy %d", j.index)).
		BeginComputePass().
		SetComputePipeline(p).
		SetBindGroup(0, j.group).
		Dispatch(groups, 1, 1).
		EndComputePass().
		GetResult()
	if err != nil {
		return err
	}
	defer cb.Release()
	return d.Queue().Submit(cb)
}

func (j *job) verify() error {
	got, err := j.dst.GetSubData(0, uint64(4*j.n))
	if err != nil {
		return err
	}
	for i := range j.n {
		if v := binary.LittleEndian.Uint32(got[4*i:]); v != j.word(i) {
			return fmt.Errorf("encoder %d: dst[%d] = %#x, want %#x", j.index, i, v, j.word(i))
		}
	}
	return nil
}

func (j *job) release() {
	if j.group != nil {
		j.group.Release()
	}
	if j.src != nil {
		j.src.Release()
	}
	if j.dst != nil {
		j.dst.Release()
	}
}
