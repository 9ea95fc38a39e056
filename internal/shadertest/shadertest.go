// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shadertest builds minimal SPIR-V modules for tests.
//
// Every entry point gets an empty void function. The modules are enough for
// reflection and for backends that run entry points as host kernels.
package shadertest

import (
	"github.com/gogpu/forge/internal/shader"
	"github.com/gogpu/naga/spirv"
)

// Module returns a SPIR-V word stream declaring the given entry points.
// Compute entry points with a zero WorkgroupSize get a 1x1x1 local size.
func Module(entries ...shader.EntryPoint) []uint32 {
	b := spirv.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	void := b.AddTypeVoid()
	fnType := b.AddTypeFunction(void)

	for _, e := range entries {
		fn := b.AddFunction(fnType, void, spirv.FunctionControlNone)
		b.AddLabel()
		b.AddReturn()
		b.AddFunctionEnd()

		b.AddEntryPoint(spirv.ExecutionModel(e.Stage), fn, e.Name, nil)
		switch e.Stage {
		case shader.StageCompute:
			size := e.WorkgroupSize
			if size == [3]uint32{} {
				size = [3]uint32{1, 1, 1}
			}
			b.AddExecutionMode(fn, spirv.ExecutionModeLocalSize, size[0], size[1], size[2])
		case shader.StageFragment:
			b.AddExecutionMode(fn, spirv.ExecutionModeOriginUpperLeft)
		}
	}

	words, err := shader.Words(b.Build())
	if err != nil {
		panic(err)
	}
	return words
}

// Compute returns a module with a single compute entry point.
func Compute(name string, x, y, z uint32) []uint32 {
	return Module(shader.EntryPoint{Name: name, Stage: shader.StageCompute, WorkgroupSize: [3]uint32{x, y, z}})
}

// VertexFragment returns a module with a vertex and a fragment entry point.
func VertexFragment(vs, fs string) []uint32 {
	return Module(
		shader.EntryPoint{Name: vs, Stage: shader.StageVertex},
		shader.EntryPoint{Name: fs, Stage: shader.StageFragment},
	)
}
