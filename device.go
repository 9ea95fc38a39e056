// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/forge/gpucore"
	"github.com/gogpu/gputypes"
)

// ObjectKind identifies an object type in device statistics.
type ObjectKind uint8

// Object kinds.
const (
	KindBuffer ObjectKind = iota
	KindBufferView
	KindTexture
	KindTextureView
	KindSampler
	KindShaderModule
	KindBindGroupLayout
	KindPipelineLayout
	KindBindGroup
	KindComputePipeline
	KindRenderPipeline
	KindCommandBuffer
	numObjectKinds
)

var objectKindNames = [numObjectKinds]string{
	KindBuffer:          "Buffer",
	KindBufferView:      "BufferView",
	KindTexture:         "Texture",
	KindTextureView:     "TextureView",
	KindSampler:         "Sampler",
	KindShaderModule:    "ShaderModule",
	KindBindGroupLayout: "BindGroupLayout",
	KindPipelineLayout:  "PipelineLayout",
	KindBindGroup:       "BindGroup",
	KindComputePipeline: "ComputePipeline",
	KindRenderPipeline:  "RenderPipeline",
	KindCommandBuffer:   "CommandBuffer",
}

// String returns the object type name.
func (k ObjectKind) String() string {
	if k < numObjectKinds {
		return objectKindNames[k]
	}
	return fmt.Sprintf("ObjectKind(%d)", uint8(k))
}

// Device is the factory for every forge object and the owner of the error
// channel, the queue and the backend.
//
// Object creation is safe for concurrent use. Builders and encoders returned
// by the device are not: each must be used from a single goroutine.
type Device struct {
	backend gpucore.Backend
	limits  gputypes.Limits
	label   string
	queue   *Queue

	errMu   sync.RWMutex
	onError ErrorCallback

	// backendMu guards backend use against Close. destroyed is set once
	// the backend has been destroyed; later destroy hooks skip the backend.
	backendMu sync.RWMutex
	destroyed bool

	closed atomic.Bool
	lost   atomic.Bool

	live [numObjectKinds]atomic.Int64

	emptyMu     sync.Mutex
	emptyLayout *BindGroupLayout
}

// NewDevice creates a device on top of an opened backend. The device takes
// ownership of the backend and destroys it in Close.
func NewDevice(backend gpucore.Backend, opts ...DeviceOption) (*Device, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidObject)
	}

	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}

	limits := backend.Limits()
	if o.limits != nil {
		limits = *o.limits
	}
	for _, fn := range o.adjust {
		fn(&limits)
	}

	d := &Device{
		backend: backend,
		limits:  limits,
		label:   o.label,
		onError: o.onError,
	}
	d.queue = newQueue(d, o.queueDepth)

	propagateLogger(backend, Logger())
	openDevicesMu.Lock()
	openDevices[d] = struct{}{}
	openDevicesMu.Unlock()

	Logger().Info("forge: device created",
		"label", d.label,
		"backend", backend.Name(),
		"maxBufferSize", limits.MaxBufferSize,
		"maxBindGroups", limits.MaxBindGroups)
	return d, nil
}

// OpenDevice opens a registered backend by name and creates a device on it.
// An empty name selects the best available backend.
func OpenDevice(backend string, opts ...DeviceOption) (*Device, error) {
	b, err := gpucore.Open(backend)
	if err != nil {
		return nil, err
	}
	d, err := NewDevice(b, opts...)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	return d, nil
}

// Close waits for all queued work, then destroys the backend.
//
// Objects still alive after Close remain valid Go values but no longer own
// backend objects; releasing them is safe. Creating objects or submitting
// work on a closed device fails with ErrDeviceClosed. Close is idempotent.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.queue.close()

	d.emptyMu.Lock()
	if d.emptyLayout != nil {
		d.emptyLayout.Release()
		d.emptyLayout = nil
	}
	d.emptyMu.Unlock()

	d.backendMu.Lock()
	d.destroyed = true
	d.backend.Destroy()
	d.backendMu.Unlock()

	openDevicesMu.Lock()
	delete(openDevices, d)
	openDevicesMu.Unlock()

	Logger().Info("forge: device closed", "label", d.label, "backend", d.backend.Name())
	return nil
}

// Label returns the device debug label.
func (d *Device) Label() string { return d.label }

// Backend returns the name of the backend the device runs on.
func (d *Device) Backend() string { return d.backend.Name() }

// Limits returns the limits the device validates against.
func (d *Device) Limits() gputypes.Limits { return d.limits }

// Queue returns the device's queue.
func (d *Device) Queue() *Queue { return d.queue }

// Lost reports whether the backend reported device loss.
func (d *Device) Lost() bool { return d.lost.Load() }

// SetErrorCallback replaces the error channel. A nil callback restores
// logging through [Logger].
func (d *Device) SetErrorCallback(cb ErrorCallback) {
	d.errMu.Lock()
	d.onError = cb
	d.errMu.Unlock()
}

// Stats returns the number of live objects of each kind created by this
// device. Kinds with no live objects are omitted.
func (d *Device) Stats() map[ObjectKind]int {
	stats := make(map[ObjectKind]int)
	for k := range d.live {
		if n := d.live[k].Load(); n > 0 {
			stats[ObjectKind(k)] = int(n)
		}
	}
	return stats
}

// report delivers e to the error channel.
func (d *Device) report(e *Error) {
	d.noteLost(e)
	d.deliver(e)
}

// noteLost marks the device lost when e carries a device loss.
func (d *Device) noteLost(e *Error) {
	if e.Kind == ErrorKindBackend && errors.Is(e.Err, ErrDeviceLost) {
		if d.lost.CompareAndSwap(false, true) {
			Logger().Error("forge: device lost", "label", d.label, "backend", d.backend.Name())
		}
	}
}

// deliver hands e to the error callback, or logs it when none is set.
func (d *Device) deliver(e *Error) {
	d.errMu.RLock()
	cb := d.onError
	d.errMu.RUnlock()
	if cb != nil {
		cb(e)
		return
	}
	Logger().Warn("forge: error",
		"kind", e.Kind.String(),
		"object", e.Object,
		"op", e.Op,
		"err", e.Err)
}

// fail builds an *Error, reports it and returns it.
func (d *Device) fail(kind ErrorKind, object, op string, err error) *Error {
	e := &Error{Kind: kind, Object: object, Op: op, Err: err}
	d.report(e)
	return e
}

// usable returns the error that prevents new work on the device, if any.
func (d *Device) usable() (ErrorKind, error) {
	switch {
	case d.closed.Load():
		return ErrorKindUsage, ErrDeviceClosed
	case d.lost.Load():
		return ErrorKindBackend, ErrDeviceLost
	}
	return 0, nil
}

// withBackend runs fn while the backend is guaranteed to be alive.
func (d *Device) withBackend(fn func(b gpucore.Backend) error) error {
	d.backendMu.RLock()
	defer d.backendMu.RUnlock()
	if d.destroyed {
		return ErrDeviceClosed
	}
	return fn(d.backend)
}

// destroyWith runs a backend destroy call unless the backend is gone.
func (d *Device) destroyWith(fn func(b gpucore.Backend)) {
	d.backendMu.RLock()
	defer d.backendMu.RUnlock()
	if !d.destroyed {
		fn(d.backend)
	}
}

// emptyBindGroupLayout returns the shared layout used for unset pipeline
// layout slots. The caller receives its own reference.
func (d *Device) emptyBindGroupLayout() (*BindGroupLayout, error) {
	d.emptyMu.Lock()
	defer d.emptyMu.Unlock()
	if d.emptyLayout == nil {
		l, err := d.createBindGroupLayout("empty", nil)
		if err != nil {
			return nil, err
		}
		d.emptyLayout = l
	}
	d.emptyLayout.AddRef()
	return d.emptyLayout, nil
}

// object is the state shared by every device-created object.
type object struct {
	RefCounted
	device *Device
	label  string
}

// setup registers the object with the device and arms its destroy hook.
func (o *object) setup(d *Device, kind ObjectKind, label string, destroy func()) {
	o.device = d
	o.label = label
	d.live[kind].Add(1)
	Logger().Debug("forge: create", "kind", kind.String(), "label", label)
	o.init(func() {
		if destroy != nil {
			destroy()
		}
		d.live[kind].Add(-1)
		Logger().Debug("forge: destroy", "kind", kind.String(), "label", label)
	})
}

// Device returns the device that created the object.
func (o *object) Device() *Device { return o.device }

// Label returns the object's debug label.
func (o *object) Label() string { return o.label }

func (o *object) base() *object { return o }

// baseOf returns the shared object state of a possibly nil object pointer.
func baseOf[P interface {
	*T
	base() *object
}, T any](p P) *object {
	if p == nil {
		return nil
	}
	return p.base()
}

// checkObject validates an object argument for use on device d.
func checkObject(d *Device, o *object, what string) error {
	if o == nil || !o.alive() {
		return fmt.Errorf("%w: %s", ErrInvalidObject, what)
	}
	if o.device != d {
		return fmt.Errorf("%w: %s", ErrDeviceMismatch, what)
	}
	return nil
}
