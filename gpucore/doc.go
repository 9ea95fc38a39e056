// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the boundary between forge's validating frontend
// and the backends that talk to a device.
//
// The frontend (package forge) owns builders, validation, reference
// counting and the command encoder state machine. A [Backend] only
// realizes objects the frontend has already validated and executes
// [CommandStream] values the encoder has already checked.
//
//	               +-----------------+
//	               |      forge      |
//	               | (builders, enc) |
//	               +--------+--------+
//	                        |  gpucore.Backend
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          |backend/software |
//	|  (wgpu hal)     |          | (host kernels)  |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// Backend objects are named by opaque IDs ([BufferID], [TextureID], ...).
// The Backend interface provides creation and destruction methods for each
// kind. Backends are responsible for tracking the mapping between IDs and
// native resources.
//
// # Registry
//
// Backends register a [Factory] under a name from their init functions;
// [Open] creates one by name and [Default] picks the best available:
//
//	import _ "github.com/gogpu/forge/backend/software"
//
//	b, err := gpucore.Open("software")
package gpucore
