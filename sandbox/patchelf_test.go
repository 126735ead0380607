// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPatchInterpreterUsesConfiguredTool(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")

	// Stand-in tool that records its arguments instead of patching.
	tool := filepath.Join(dir, "patchelf")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	if err := os.WriteFile(tool, []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	binary := filepath.Join(dir, "cc")
	if err := os.WriteFile(binary, []byte("\x7fELF"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := PatchInterpreter(context.Background(), tool, HostPath(binary)); err != nil {
		t.Fatalf("PatchInterpreter: %v", err)
	}

	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("configured tool was not invoked: %v", err)
	}
	want := "--set-interpreter " + string(InterpreterPath) + " " + binary
	if got := strings.TrimSpace(string(recorded)); got != want {
		t.Errorf("tool arguments = %q, want %q", got, want)
	}
}

func TestPatchInterpreterExitStatus(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "patchelf")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\necho 'not an ELF' >&2\nexit 3\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := PatchInterpreter(context.Background(), tool, HostPath(filepath.Join(dir, "cc")))
	if err == nil {
		t.Fatal("expected error for failing tool")
	}
	if !strings.Contains(err.Error(), "code 3") {
		t.Errorf("error = %v, want exit code surfaced", err)
	}
	if !strings.Contains(err.Error(), "not an ELF") {
		t.Errorf("error = %v, want tool output surfaced", err)
	}
}
