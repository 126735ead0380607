// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for unpak.
//
// Configuration is loaded from a single file specified by either the
// UNPAK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${UNPAK_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other unpak packages.
package config
