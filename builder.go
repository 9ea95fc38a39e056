// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "fmt"

// builder is the single-use staging state shared by every object builder.
//
// State machine:
//
//	Open     -> (setters)   -> Open
//	Open     -> GetResult() -> Consumed
//	Consumed -> (anything)  -> usage error ErrBuilderConsumed
//
// A usage error seen while Open (a property set twice, an invalid object
// argument) is reported immediately and poisons the builder: later setters
// are ignored and GetResult returns that same error without reporting it
// again. Every failure therefore reaches the error channel exactly once.
type builder[T any] struct {
	device   *Device
	name     string
	consumed bool
	err      *Error
}

func newBuilder[T any](d *Device, name string) builder[T] {
	return builder[T]{device: d, name: name}
}

// open reports whether a setter may apply its value.
func (b *builder[T]) open(op string) bool {
	if b.consumed {
		b.device.fail(ErrorKindUsage, b.name, op, ErrBuilderConsumed)
		return false
	}
	return b.err == nil
}

// property marks a settable property as set. It reports a usage error and
// returns false when the property was already set.
func (b *builder[T]) property(op string, set *bool) bool {
	if !b.open(op) {
		return false
	}
	if *set {
		b.misuse(op, fmt.Errorf("%w: %s", ErrPropertySetTwice, op))
		return false
	}
	*set = true
	return true
}

// misuse reports a usage error and poisons the builder.
func (b *builder[T]) misuse(op string, err error) {
	b.poison(ErrorKindUsage, op, err)
}

// poison reports err and makes it the builder's result. Only the first
// error is kept.
func (b *builder[T]) poison(kind ErrorKind, op string, err error) {
	e := b.device.fail(kind, b.name, op, err)
	if b.err == nil {
		b.err = e
	}
}

// finish performs the Open -> Consumed transition. validate runs first;
// create is invoked only for a valid configuration and is the single point
// where the backend is called.
func (b *builder[T]) finish(validate func() error, create func() (T, error)) (T, error) {
	var zero T
	const op = "GetResult"
	if b.consumed {
		return zero, b.device.fail(ErrorKindUsage, b.name, op, ErrBuilderConsumed)
	}
	b.consumed = true

	if b.err != nil {
		return zero, b.err
	}
	if kind, err := b.device.usable(); err != nil {
		return zero, b.device.fail(kind, b.name, op, err)
	}
	if err := validate(); err != nil {
		return zero, b.device.fail(ErrorKindValidation, b.name, op, err)
	}
	obj, err := create()
	if err != nil {
		return zero, b.device.fail(ErrorKindBackend, b.name, op, err)
	}
	return obj, nil
}

// missing formats an ErrMissingProperty error.
func missing(property string) error {
	return fmt.Errorf("%w: %s", ErrMissingProperty, property)
}
