// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// unpak builds source packages in isolated bubblewrap sandboxes.
package main
