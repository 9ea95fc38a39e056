// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package main

// Registers the "native" and "noop" backends.
import _ "github.com/gogpu/forge/backend/native"
