// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrBackendNotAvailable is returned when a requested backend is not registered.
var ErrBackendNotAvailable = errors.New("gpucore: backend not available")

// Factory creates a new backend instance.
type Factory func() (Backend, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// Priority order for Default (first that opens wins).
	backendPriority = []string{"native", "software"}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open creates a backend by name. An empty name selects Default.
func Open(name string) (Backend, error) {
	if name == "" {
		return Default()
	}

	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrBackendNotAvailable, name, Available())
	}
	b, err := factory()
	if err != nil {
		return nil, fmt.Errorf("gpucore: open %s: %w", name, err)
	}
	return b, nil
}

// Default opens the best available backend based on priority, falling
// back to any other registered backend in name order.
func Default() (Backend, error) {
	tried := make(map[string]bool)
	var errs []error

	try := func(name string) Backend {
		registryMu.RLock()
		factory, ok := factories[name]
		registryMu.RUnlock()
		if !ok || tried[name] {
			return nil
		}
		tried[name] = true
		b, err := factory()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return nil
		}
		return b
	}

	for _, name := range backendPriority {
		if b := try(name); b != nil {
			return b, nil
		}
	}
	for _, name := range Available() {
		if b := try(name); b != nil {
			return b, nil
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
	}
	return nil, ErrBackendNotAvailable
}
