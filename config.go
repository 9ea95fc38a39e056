// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigFormat is returned for config files that are neither
// TOML nor YAML.
var ErrUnknownConfigFormat = errors.New("forge: unknown config format")

// Config is the file form of the device options.
//
// Example TOML:
//
//	backend = "software"
//	label = "compute"
//	queue_depth = 128
//
//	[limits]
//	max_buffer_size = 1048576
type Config struct {
	// Backend is the registered backend name. Empty selects the default.
	Backend string `toml:"backend" yaml:"backend"`

	// Label is the device debug label.
	Label string `toml:"label" yaml:"label"`

	// QueueDepth is the number of pending queue operations before Submit
	// blocks. Zero keeps the default.
	QueueDepth int `toml:"queue_depth" yaml:"queue_depth"`

	// Limits tightens individual device limits. Zero fields keep the
	// backend value.
	Limits LimitsConfig `toml:"limits" yaml:"limits"`
}

// LimitsConfig holds per-limit overrides.
type LimitsConfig struct {
	MaxBufferSize                    uint64 `toml:"max_buffer_size" yaml:"max_buffer_size"`
	MaxBindGroups                    uint32 `toml:"max_bind_groups" yaml:"max_bind_groups"`
	MaxBindingsPerBindGroup          uint32 `toml:"max_bindings_per_bind_group" yaml:"max_bindings_per_bind_group"`
	MaxComputeWorkgroupsPerDimension uint32 `toml:"max_compute_workgroups_per_dimension" yaml:"max_compute_workgroups_per_dimension"`
}

// LoadConfig reads a config file. The format is chosen by extension:
// .toml, or .yaml and .yml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("forge: read config: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeConfig(bytes.NewReader(data), format)
}

// DecodeConfig decodes a config in the given format ("toml", "yaml" or "yml").
// Unknown keys are rejected.
func DecodeConfig(r io.Reader, format string) (*Config, error) {
	cfg := new(Config)
	switch format {
	case "toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("forge: decode toml config: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("forge: decode yaml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownConfigFormat, format)
	}
	if cfg.QueueDepth < 0 {
		return nil, fmt.Errorf("forge: queue_depth must not be negative, got %d", cfg.QueueDepth)
	}
	return cfg, nil
}

// Options converts the config to device options.
func (c *Config) Options() []DeviceOption {
	var opts []DeviceOption
	if c.Label != "" {
		opts = append(opts, WithLabel(c.Label))
	}
	if c.QueueDepth > 0 {
		opts = append(opts, WithQueueDepth(c.QueueDepth))
	}
	if c.Limits != (LimitsConfig{}) {
		lc := c.Limits
		opts = append(opts, withLimitAdjustment(func(l *gputypes.Limits) {
			if lc.MaxBufferSize != 0 {
				l.MaxBufferSize = lc.MaxBufferSize
			}
			if lc.MaxBindGroups != 0 {
				l.MaxBindGroups = lc.MaxBindGroups
			}
			if lc.MaxBindingsPerBindGroup != 0 {
				l.MaxBindingsPerBindGroup = lc.MaxBindingsPerBindGroup
			}
			if lc.MaxComputeWorkgroupsPerDimension != 0 {
				l.MaxComputeWorkgroupsPerDimension = lc.MaxComputeWorkgroupsPerDimension
			}
		}))
	}
	return opts
}

// OpenDeviceFromConfig opens the configured backend and creates a device
// with the configured options, followed by opts.
func OpenDeviceFromConfig(c *Config, opts ...DeviceOption) (*Device, error) {
	return OpenDevice(c.Backend, append(c.Options(), opts...)...)
}
