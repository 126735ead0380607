// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal writes "Error: err" to stderr and exits with code 1. This is
// the standard unpak entrypoint error handler. Use it in main() for
// errors from subcommands where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// Exit terminates the process with the given code. Used to pass a
// sandboxed child's exit status through as unpak's own, so callers in
// shell pipelines observe the build command's real status.
func Exit(code int) {
	os.Exit(code)
}
