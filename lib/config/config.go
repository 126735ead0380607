// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for unpak.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Sandbox configures build sandboxing.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Store configures the artifact store.
	Store StoreConfig `yaml:"store"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for unpak data.
	Root string `yaml:"root"`

	// Store is the artifact store root.
	Store string `yaml:"store"`

	// Manifests is the directory containing project manifests.
	Manifests string `yaml:"manifests"`
}

// SandboxConfig configures build sandboxing.
type SandboxConfig struct {
	// Bwrap is the path to the bubblewrap binary. Empty means
	// discover it on the standard paths.
	Bwrap string `yaml:"bwrap"`

	// Interpreter is the host ELF interpreter bound into sandboxes.
	// Default: /lib64/ld-linux-x86-64.so.2
	Interpreter string `yaml:"interpreter"`

	// Patchelf is the path to the patchelf binary. Empty means PATH
	// lookup.
	Patchelf string `yaml:"patchelf"`
}

// StoreConfig configures the artifact store.
type StoreConfig struct {
	// Compression selects blob compression: none, lz4, or zstd.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// Default returns the default configuration. These defaults are a base
// merged under the loaded file, not a substitute for one.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "unpak")

	return &Config{
		Paths: PathsConfig{
			Root:      defaultRoot,
			Store:     filepath.Join(defaultRoot, "store"),
			Manifests: filepath.Join(defaultRoot, "manifests"),
		},
		Sandbox: SandboxConfig{
			Interpreter: "/lib64/ld-linux-x86-64.so.2",
		},
		Store: StoreConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the UNPAK_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or discovery: if UNPAK_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("UNPAK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("UNPAK_CONFIG environment variable not set; " +
			"set it to the path of your unpak.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"UNPAK_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["UNPAK_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Store = expandVars(c.Paths.Store, vars)
	c.Paths.Manifests = expandVars(c.Paths.Manifests, vars)
	c.Sandbox.Bwrap = expandVars(c.Sandbox.Bwrap, vars)
	c.Sandbox.Interpreter = expandVars(c.Sandbox.Interpreter, vars)
	c.Sandbox.Patchelf = expandVars(c.Sandbox.Patchelf, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Store == "" {
		errs = append(errs, fmt.Errorf("paths.store is required"))
	}
	if c.Sandbox.Interpreter == "" {
		errs = append(errs, fmt.Errorf("sandbox.interpreter is required"))
	}

	switch c.Store.Compression {
	case "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("store.compression must be one of: none, lz4, zstd"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.Store, c.Paths.Manifests} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
