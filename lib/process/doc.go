// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the unpak
// CLI. These functions centralize the raw I/O patterns that exist
// before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main(), including
//     pass-through of a sandboxed child's exit status.
package process
