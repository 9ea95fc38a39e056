// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package forge provides a cross-backend GPU object model and command
// encoder for Go.
//
// # Overview
//
// forge sits between application code and a GPU backend. Every GPU object
// is built by a single-use builder obtained from a Device, validated once,
// and frozen. Commands are recorded through a validating encoder and
// submitted to a Queue that executes them on the backend in order.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/forge"
//		_ "github.com/gogpu/forge/backend/software"
//	)
//
//	dev, err := forge.OpenDevice("software")
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	buf, err := dev.CreateBufferBuilder().
//		SetSize(1024).
//		SetAllowedUsage(forge.BufferUsageStorage | forge.BufferUsageCopyDst).
//		GetResult()
//
// # Object Model
//
// Objects are reference counted. A builder's result starts with one
// reference owned by the caller; Release drops it. Objects that depend on
// others hold references on them: views on their buffer or texture, bind
// groups on their layout and resources, pipelines on their layout and
// shader modules, command buffers on everything they record, and the queue
// on submitted command buffers. Releasing an object while something still
// depends on it is safe.
//
// # Errors
//
// Failures are classified as usage, validation or backend errors and are
// delivered to the device error callback exactly once, in addition to being
// returned where the API returns errors. Without a callback they are logged
// through [Logger] at Warn level.
//
// # Backends
//
// Backends implement gpucore.Backend and register themselves by name:
//   - backend/software: host memory and Go compute kernels
//   - backend/native: gogpu/wgpu HAL (Vulkan, Metal, DX12, GLES, noop)
//
// Import a backend package for its side effect to make it available to
// [OpenDevice].
package forge

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
