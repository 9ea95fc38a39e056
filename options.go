// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "github.com/gogpu/gputypes"

// DeviceOption configures a Device during creation.
// Use functional options to customize Device behavior.
//
// Example:
//
//	// Default limits and error logging
//	dev, err := forge.NewDevice(backend)
//
//	// Custom error handling and a deeper queue
//	dev, err := forge.NewDevice(backend,
//	    forge.WithErrorCallback(func(e *forge.Error) { errs <- e }),
//	    forge.WithQueueDepth(256),
//	)
type DeviceOption func(*deviceOptions)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	label      string
	onError    ErrorCallback
	limits     *gputypes.Limits
	adjust     []func(*gputypes.Limits)
	queueDepth int
}

// defaultQueueDepth is the number of queue operations buffered before
// Submit blocks.
const defaultQueueDepth = 64

// defaultDeviceOptions returns the default device options.
func defaultDeviceOptions() deviceOptions {
	return deviceOptions{
		queueDepth: defaultQueueDepth,
	}
}

// WithErrorCallback sets the device error channel.
// Every usage, validation and backend error is passed to cb exactly once.
// Without this option errors are logged at Warn level through [Logger].
func WithErrorCallback(cb ErrorCallback) DeviceOption {
	return func(o *deviceOptions) {
		o.onError = cb
	}
}

// WithLimits replaces the limits the frontend validates against.
// The backend's own limits are used when this option is absent. Limits
// looser than the backend's are not rejected here but fail in the backend.
func WithLimits(limits gputypes.Limits) DeviceOption {
	return func(o *deviceOptions) {
		o.limits = &limits
	}
}

// WithLabel sets the device debug label used in log output.
func WithLabel(label string) DeviceOption {
	return func(o *deviceOptions) {
		o.label = label
	}
}

// WithQueueDepth sets how many queue operations may be pending before
// Submit blocks. Values below 1 are ignored.
func WithQueueDepth(n int) DeviceOption {
	return func(o *deviceOptions) {
		if n > 0 {
			o.queueDepth = n
		}
	}
}

// withLimitAdjustment edits the effective limits after they are resolved.
func withLimitAdjustment(fn func(*gputypes.Limits)) DeviceOption {
	return func(o *deviceOptions) {
		o.adjust = append(o.adjust, fn)
	}
}
