// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/forge/backend/software"
)

const tomlConfig = `
backend = "software"
label = "compute"
queue_depth = 16

[limits]
max_buffer_size = 4096
max_bind_groups = 2
`

const yamlConfig = `
backend: software
label: compute
queue_depth: 16
limits:
  max_buffer_size: 4096
  max_bind_groups: 2
`

func TestDecodeConfig(t *testing.T) {
	want := Config{
		Backend:    "software",
		Label:      "compute",
		QueueDepth: 16,
		Limits:     LimitsConfig{MaxBufferSize: 4096, MaxBindGroups: 2},
	}
	tests := []struct {
		format string
		input  string
	}{
		{"toml", tomlConfig},
		{"yaml", yamlConfig},
		{"yml", yamlConfig},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg, err := DecodeConfig(strings.NewReader(tt.input), tt.format)
			if err != nil {
				t.Fatalf("DecodeConfig: %v", err)
			}
			if *cfg != want {
				t.Errorf("config = %+v, want %+v", *cfg, want)
			}
		})
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		input  string
	}{
		{"unknown toml key", "toml", "backend = \"software\"\ncolour = 1\n"},
		{"unknown yaml key", "yaml", "backend: software\ncolour: 1\n"},
		{"negative depth", "toml", "queue_depth = -1\n"},
		{"malformed toml", "toml", "backend = \n"},
		{"unknown format", "json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeConfig(strings.NewReader(tt.input), tt.format); err == nil {
				t.Error("DecodeConfig succeeded")
			}
		})
	}

	_, err := DecodeConfig(strings.NewReader("{}"), "json")
	if !errors.Is(err, ErrUnknownConfigFormat) {
		t.Errorf("json error = %v, want ErrUnknownConfigFormat", err)
	}
}

func TestDecodeConfigEmptyYAML(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(""), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != (Config{}) {
		t.Errorf("config = %+v, want zero", *cfg)
	}
	if opts := cfg.Options(); len(opts) != 0 {
		t.Errorf("zero config produced %d options", len(opts))
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"device.toml": tomlConfig,
		"device.YAML": yamlConfig,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s): %v", name, err)
		}
		if cfg.Label != "compute" || cfg.Limits.MaxBufferSize != 4096 {
			t.Errorf("LoadConfig(%s) = %+v", name, *cfg)
		}
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadConfig of a missing file succeeded")
	}
}

func TestOpenDeviceFromConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(tomlConfig), "toml")
	if err != nil {
		t.Fatal(err)
	}
	log := new(errorLog)
	d, err := OpenDeviceFromConfig(cfg, WithErrorCallback(log.record))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if got := d.Backend(); got != software.Name {
		t.Errorf("Backend() = %q, want %q", got, software.Name)
	}
	if got := d.Label(); got != "compute" {
		t.Errorf("Label() = %q, want compute", got)
	}
	lim := d.Limits()
	if lim.MaxBufferSize != 4096 || lim.MaxBindGroups != 2 {
		t.Errorf("limits = buffer %d groups %d, want 4096 and 2", lim.MaxBufferSize, lim.MaxBindGroups)
	}
	// Unset limits keep the backend value.
	if lim.MaxComputeWorkgroupsPerDimension == 0 {
		t.Error("MaxComputeWorkgroupsPerDimension was cleared")
	}

	_, err = d.CreateBufferBuilder().SetSize(8192).SetAllowedUsage(BufferUsageStorage).GetResult()
	wantError(t, err, ErrorKindValidation, ErrOutOfRange)
}
