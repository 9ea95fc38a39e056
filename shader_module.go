// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"
	"slices"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/forge/internal/shader"
	"github.com/gogpu/gputypes"
)

// ShaderStage is a single pipeline stage. ShaderStages is a set of them,
// used for binding visibility.
type (
	ShaderStage  = gputypes.ShaderStage
	ShaderStages = gputypes.ShaderStages
)

// Shader stages.
const (
	ShaderStageNone     ShaderStage = gputypes.ShaderStageNone
	ShaderStageVertex               = gputypes.ShaderStageVertex
	ShaderStageFragment             = gputypes.ShaderStageFragment
	ShaderStageCompute              = gputypes.ShaderStageCompute
)

// EntryPoint is a shader entry point reflected from a module.
type EntryPoint struct {
	Name  string
	Stage ShaderStage

	// WorkgroupSize is the local size of a compute entry point.
	WorkgroupSize [3]uint32
}

// ShaderModule is compiled shader code with its reflected entry points.
type ShaderModule struct {
	object
	id          gpucore.ShaderModuleID
	entryPoints []EntryPoint
}

// EntryPoints returns the reflected entry points.
func (m *ShaderModule) EntryPoints() []EntryPoint {
	return slices.Clone(m.entryPoints)
}

// lookup finds the entry point name for stage.
func (m *ShaderModule) lookup(name string, stage ShaderStage) (EntryPoint, bool) {
	for _, ep := range m.entryPoints {
		if ep.Name == name && ep.Stage == stage {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// ShaderModuleBuilder stages the configuration of a ShaderModule.
// Exactly one of SetWGSL and SetSPIRV is required.
type ShaderModuleBuilder struct {
	builder[*ShaderModule]
	label string
	wgsl  string
	spirv []uint32

	hasLabel, hasWGSL, hasSPIRV bool

	compiled *shader.Module
}

// CreateShaderModuleBuilder returns a builder for a new shader module.
func (d *Device) CreateShaderModuleBuilder() *ShaderModuleBuilder {
	return &ShaderModuleBuilder{builder: newBuilder[*ShaderModule](d, "ShaderModuleBuilder")}
}

// SetLabel sets the debug label. The software backend looks up kernels by
// this label.
func (b *ShaderModuleBuilder) SetLabel(label string) *ShaderModuleBuilder {
	if b.property("SetLabel", &b.hasLabel) {
		b.label = label
	}
	return b
}

// SetWGSL sets WGSL source. It is compiled to SPIR-V in GetResult.
func (b *ShaderModuleBuilder) SetWGSL(src string) *ShaderModuleBuilder {
	if b.property("SetWGSL", &b.hasWGSL) {
		b.wgsl = src
	}
	return b
}

// SetSPIRV sets a SPIR-V module. The words are copied.
func (b *ShaderModuleBuilder) SetSPIRV(words []uint32) *ShaderModuleBuilder {
	if b.property("SetSPIRV", &b.hasSPIRV) {
		b.spirv = slices.Clone(words)
	}
	return b
}

// GetResult compiles or reflects the source and creates the module.
func (b *ShaderModuleBuilder) GetResult() (*ShaderModule, error) {
	return b.finish(b.validate, b.create)
}

func (b *ShaderModuleBuilder) validate() error {
	var err error
	switch {
	case b.hasWGSL && b.hasSPIRV:
		return fmt.Errorf("%w: WGSL and SPIR-V", ErrMutuallyExclusive)
	case b.hasWGSL:
		b.compiled, err = shader.CompileWGSL(b.wgsl)
	case b.hasSPIRV:
		b.compiled, err = shader.LoadSPIRV(b.spirv)
	default:
		return missing("WGSL or SPIR-V source")
	}
	return err
}

func (b *ShaderModuleBuilder) create() (*ShaderModule, error) {
	d := b.device
	desc := &gpucore.ShaderModuleDesc{
		Label: b.label,
		WGSL:  b.wgsl,
		SPIRV: b.compiled.Words,
	}
	var id gpucore.ShaderModuleID
	err := d.withBackend(func(be gpucore.Backend) error {
		var err error
		id, err = be.CreateShaderModule(desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	m := &ShaderModule{id: id}
	for _, ep := range b.compiled.EntryPoints {
		stage, ok := stageFromShader(ep.Stage)
		if !ok {
			continue
		}
		m.entryPoints = append(m.entryPoints, EntryPoint{
			Name:          ep.Name,
			Stage:         stage,
			WorkgroupSize: ep.WorkgroupSize,
		})
	}
	m.setup(d, KindShaderModule, b.label, func() {
		d.destroyWith(func(be gpucore.Backend) { be.DestroyShaderModule(id) })
	})
	return m, nil
}

// stageFromShader maps a reflected execution model to a pipeline stage.
func stageFromShader(s shader.Stage) (ShaderStage, bool) {
	switch s {
	case shader.StageVertex:
		return ShaderStageVertex, true
	case shader.StageFragment:
		return ShaderStageFragment, true
	case shader.StageCompute:
		return ShaderStageCompute, true
	}
	return ShaderStageNone, false
}
