// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrPatchelfNotFound means the patchelf tool is not installed on the
// host. Reported distinctly from patch failures so the fix (install
// patchelf) is obvious.
var ErrPatchelfNotFound = errors.New("patchelf not found; is patchelf installed?")

// PatchInterpreter rewrites the ELF interpreter of the given host
// binary to the conventional sandbox interpreter path
// ([InterpreterPath]). This is a side-effecting external step: the
// binary is modified in place so it loads inside the sandbox without
// depending on the host interpreter location.
//
// patchelf is the tool binary to invoke; an empty string means PATH
// lookup.
func PatchInterpreter(ctx context.Context, patchelf string, binary HostPath) error {
	if patchelf == "" {
		patchelf = "patchelf"
	}
	cmd := exec.CommandContext(ctx, patchelf, "--set-interpreter", string(InterpreterPath), string(binary))
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ErrPatchelfNotFound
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("patchelf %s exited with code %d: %s", binary, exitErr.ExitCode(), output)
	}
	return fmt.Errorf("running patchelf on %s: %w", binary, err)
}
