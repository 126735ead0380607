// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Store.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Store.Compression)
	}
	if cfg.Sandbox.Interpreter != "/lib64/ld-linux-x86-64.so.2" {
		t.Errorf("unexpected default interpreter: %s", cfg.Sandbox.Interpreter)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_RequiresUnpakConfig(t *testing.T) {
	origConfig := os.Getenv("UNPAK_CONFIG")
	defer os.Setenv("UNPAK_CONFIG", origConfig)

	os.Unsetenv("UNPAK_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when UNPAK_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "UNPAK_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithUnpakConfig(t *testing.T) {
	origConfig := os.Getenv("UNPAK_CONFIG")
	defer os.Setenv("UNPAK_CONFIG", origConfig)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "unpak.yaml")

	configContent := `
paths:
  root: /test/root
sandbox:
  bwrap: /opt/bwrap/bin/bwrap
store:
  compression: lz4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	os.Setenv("UNPAK_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	if cfg.Sandbox.Bwrap != "/opt/bwrap/bin/bwrap" {
		t.Errorf("unexpected bwrap path: %s", cfg.Sandbox.Bwrap)
	}
	if cfg.Store.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.Store.Compression)
	}
	// Unset fields keep their defaults.
	if cfg.Sandbox.Interpreter != "/lib64/ld-linux-x86-64.so.2" {
		t.Errorf("interpreter default lost: %s", cfg.Sandbox.Interpreter)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestVariableExpansion(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "unpak.yaml")
	configContent := `
paths:
  root: /data/unpak
  store: ${UNPAK_ROOT}/store
  manifests: ${UNPAK_ROOT}/manifests
sandbox:
  patchelf: ${UNPAK_PATCHELF:-/usr/bin/patchelf}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.Store != "/data/unpak/store" {
		t.Errorf("store = %s, want /data/unpak/store", cfg.Paths.Store)
	}
	if cfg.Paths.Manifests != "/data/unpak/manifests" {
		t.Errorf("manifests = %s, want /data/unpak/manifests", cfg.Paths.Manifests)
	}
	if cfg.Sandbox.Patchelf != "/usr/bin/patchelf" {
		t.Errorf("patchelf = %s, want default expansion", cfg.Sandbox.Patchelf)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing root", func(c *Config) { c.Paths.Root = "" }, false},
		{"missing store", func(c *Config) { c.Paths.Store = "" }, false},
		{"missing interpreter", func(c *Config) { c.Sandbox.Interpreter = "" }, false},
		{"bad compression", func(c *Config) { c.Store.Compression = "gzip" }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "unpak")
	cfg := Default()
	cfg.Paths.Root = root
	cfg.Paths.Store = filepath.Join(root, "store")
	cfg.Paths.Manifests = filepath.Join(root, "manifests")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{cfg.Paths.Root, cfg.Paths.Store, cfg.Paths.Manifests} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory not created: %s", dir)
		}
	}
}
