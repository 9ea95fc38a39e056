// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL through naga and reflects the entry points
// of shader modules.
//
// WGSL sources are reflected from naga's IR. SPIR-V supplied directly is
// reflected by walking its OpEntryPoint and OpExecutionMode instructions.
package shader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Shader errors.
var (
	// ErrEmptySource is returned when compiling an empty WGSL source.
	ErrEmptySource = errors.New("shader: source is empty")

	// ErrInvalidSPIRV is returned when a word stream is not a SPIR-V module.
	ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V")
)

// Magic is the SPIR-V magic number in host word order.
const Magic uint32 = spirv.MagicNumber

const headerWords = 5

// Stage identifies the pipeline stage of an entry point.
type Stage uint32

// Stages, numbered as SPIR-V execution models.
const (
	StageVertex   = Stage(spirv.ExecutionModelVertex)
	StageFragment = Stage(spirv.ExecutionModelFragment)
	StageCompute  = Stage(spirv.ExecutionModelGLCompute)
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("Stage(%d)", uint32(s))
	}
}

// EntryPoint describes one entry point found in a module.
type EntryPoint struct {
	Name  string
	Stage Stage

	// WorkgroupSize is the compute local size; zero for other stages.
	WorkgroupSize [3]uint32
}

// Module is a compiled shader with its reflected interface.
type Module struct {
	// Words is the SPIR-V code.
	Words []uint32

	// EntryPoints in declaration order.
	EntryPoints []EntryPoint
}

// Lookup returns the entry point with the given name and stage.
func (m *Module) Lookup(name string, stage Stage) (EntryPoint, bool) {
	for _, e := range m.EntryPoints {
		if e.Name == name && e.Stage == stage {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// CompileWGSL compiles WGSL source to SPIR-V and reflects its entry points
// from the validated IR.
func CompileWGSL(src string) (*Module, error) {
	if src == "" {
		return nil, ErrEmptySource
	}

	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("shader: lower: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("shader: validate: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("shader: validation failed: %w", &verrs[0])
	}

	spirvBytes, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	words, err := Words(spirvBytes)
	if err != nil {
		return nil, err
	}

	entries := make([]EntryPoint, 0, len(module.EntryPoints))
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		stage, ok := stageFromIR(ep.Stage)
		if !ok {
			// task and mesh stages have no pipeline to bind to
			continue
		}
		e := EntryPoint{Name: ep.Name, Stage: stage}
		if stage == StageCompute {
			e.WorkgroupSize = ep.Workgroup
		}
		entries = append(entries, e)
	}
	return &Module{Words: words, EntryPoints: entries}, nil
}

// LoadSPIRV reflects a SPIR-V module supplied by the caller.
func LoadSPIRV(words []uint32) (*Module, error) {
	entries, err := Reflect(words)
	if err != nil {
		return nil, err
	}
	return &Module{Words: words, EntryPoints: entries}, nil
}

func stageFromIR(s ir.ShaderStage) (Stage, bool) {
	switch s {
	case ir.StageVertex:
		return StageVertex, true
	case ir.StageFragment:
		return StageFragment, true
	case ir.StageCompute:
		return StageCompute, true
	default:
		return 0, false
	}
}

// Words converts a little-endian SPIR-V binary to words.
func Words(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words", ErrInvalidSPIRV, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// Reflect walks the instruction stream and returns the declared entry
// points in declaration order.
func Reflect(words []uint32) ([]EntryPoint, error) {
	if len(words) < headerWords {
		return nil, fmt.Errorf("%w: %d words is shorter than the header", ErrInvalidSPIRV, len(words))
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrInvalidSPIRV, words[0])
	}

	var entries []EntryPoint
	byID := make(map[uint32][]int)
	sizes := make(map[uint32][3]uint32)

	for i := headerWords; i < len(words); {
		count := int(words[i] >> 16)
		op := spirv.OpCode(words[i] & 0xffff)
		if count == 0 || i+count > len(words) {
			return nil, fmt.Errorf("%w: truncated instruction at word %d", ErrInvalidSPIRV, i)
		}
		inst := words[i : i+count]

		switch op {
		case spirv.OpEntryPoint:
			if count < 4 {
				return nil, fmt.Errorf("%w: short OpEntryPoint at word %d", ErrInvalidSPIRV, i)
			}
			byID[inst[2]] = append(byID[inst[2]], len(entries))
			entries = append(entries, EntryPoint{Name: decodeString(inst[3:]), Stage: Stage(inst[1])})
		case spirv.OpExecutionMode:
			if count >= 6 && spirv.ExecutionMode(inst[2]) == spirv.ExecutionModeLocalSize {
				sizes[inst[1]] = [3]uint32{inst[3], inst[4], inst[5]}
			}
		}
		i += count
	}

	for id, size := range sizes {
		for _, idx := range byID[id] {
			entries[idx].WorkgroupSize = size
		}
	}
	return entries, nil
}

// decodeString reads a nul-terminated literal string packed four bytes
// per word.
func decodeString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}
