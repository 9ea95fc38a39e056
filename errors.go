// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"errors"
	"fmt"

	"github.com/gogpu/forge/gpucore"
)

// ErrorKind classifies errors reported on the device error channel.
type ErrorKind uint8

const (
	// ErrorKindUsage is programmer misuse detected at the call: reusing a
	// consumed builder, setting a property twice, a pass operation outside
	// a pass. The builder or encoder that saw it is unusable afterwards.
	ErrorKindUsage ErrorKind = iota + 1

	// ErrorKindValidation is an invalid configuration: a missing property,
	// a mismatched layout, an out-of-range size.
	ErrorKindValidation

	// ErrorKindBackend is a failure propagated from the backend, such as
	// out-of-memory or device loss.
	ErrorKindBackend
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUsage:
		return "usage"
	case ErrorKindValidation:
		return "validation"
	case ErrorKindBackend:
		return "backend"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Builder and object errors.
var (
	// ErrBuilderConsumed is returned when a builder or encoder is used after
	// GetResult.
	ErrBuilderConsumed = errors.New("forge: builder already consumed")

	// ErrPropertySetTwice is returned when a builder property is set more
	// than once. Properties are never silently overridden.
	ErrPropertySetTwice = errors.New("forge: property set twice")

	// ErrMissingProperty is returned when a required property was not set.
	ErrMissingProperty = errors.New("forge: required property not set")

	// ErrMutuallyExclusive is returned when two exclusive properties are set.
	ErrMutuallyExclusive = errors.New("forge: mutually exclusive properties set")

	// ErrInvalidObject is returned when a nil, destroyed or failed object is
	// passed to a builder, encoder or queue.
	ErrInvalidObject = errors.New("forge: invalid object")

	// ErrDeviceMismatch is returned when objects from different devices are
	// combined.
	ErrDeviceMismatch = errors.New("forge: object belongs to another device")

	// ErrOutOfRange is returned when a size, offset, index or count is
	// outside the range allowed by the object or the device limits.
	ErrOutOfRange = errors.New("forge: value out of range")

	// ErrUnaligned is returned when an offset or size violates an alignment
	// requirement.
	ErrUnaligned = errors.New("forge: value not aligned")

	// ErrInvalidUsage is returned for an empty or inconsistent usage set.
	ErrInvalidUsage = errors.New("forge: invalid usage flags")

	// ErrUsageMismatch is returned when an operation needs a usage the
	// resource was not created with.
	ErrUsageMismatch = errors.New("forge: resource usage does not allow operation")

	// ErrInvalidFormat is returned for texture formats forge cannot store.
	ErrInvalidFormat = errors.New("forge: unsupported texture format")

	// ErrInvalidStage is returned when a shader stage is not allowed by the
	// pipeline kind.
	ErrInvalidStage = errors.New("forge: invalid shader stage")

	// ErrEntryPointNotFound is returned when a shader module does not expose
	// the requested entry point for the stage.
	ErrEntryPointNotFound = errors.New("forge: entry point not found")

	// ErrLayoutMismatch is returned when bindings do not match a layout.
	ErrLayoutMismatch = errors.New("forge: binding does not match layout")

	// ErrBindGroupFrozen is returned when a frozen bind group is rebound.
	ErrBindGroupFrozen = errors.New("forge: bind group is frozen")
)

// Encoder and queue errors.
var (
	// ErrPassActive is returned when an operation needs the encoder outside
	// a pass, including GetResult with an unterminated pass.
	ErrPassActive = errors.New("forge: pass still active")

	// ErrNoActivePass is returned when a pass operation is called outside
	// the matching pass.
	ErrNoActivePass = errors.New("forge: no matching pass active")

	// ErrNoPipeline is returned when a dispatch or draw has no pipeline set.
	ErrNoPipeline = errors.New("forge: no pipeline set")

	// ErrAttachmentMismatch is returned when render pass attachments differ
	// in size or do not match the pipeline's color formats.
	ErrAttachmentMismatch = errors.New("forge: attachment mismatch")

	// ErrCopyOverlap is returned when a copy within one buffer overlaps.
	ErrCopyOverlap = errors.New("forge: source and destination ranges overlap")

	// ErrAlreadySubmitted is returned when a command buffer is submitted
	// a second time.
	ErrAlreadySubmitted = errors.New("forge: command buffer already submitted")

	// ErrDeviceClosed is returned for any use of a closed device.
	ErrDeviceClosed = errors.New("forge: device closed")

	// ErrDeviceLost is returned once the backend reported device loss.
	// All later creation on the device fails with it.
	ErrDeviceLost = gpucore.ErrDeviceLost
)

// Error is the value reported on the device error channel and returned from
// failing calls.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Object is the type of the builder, object or encoder that failed
	// (e.g., "BufferBuilder", "CommandBufferBuilder", "Queue").
	Object string

	// Op is the failing operation (e.g., "SetSize", "GetResult").
	Op string

	// Err is the underlying error, usually wrapping one of the sentinels.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s.%s: %s error: %v", e.Object, e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCallback receives every error a device reports, exactly once per
// failure. It may be called from any goroutine but never from the queue
// worker, so it may use the queue. Errors from executed work reach it before
// the fences that follow that work close.
type ErrorCallback func(*Error)

// AsError extracts the *Error from err, if there is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
