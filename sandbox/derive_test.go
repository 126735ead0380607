// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDeriveBind(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libfoo-1.2.so")
	if err := os.WriteFile(lib, []byte("\x7fELF"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	link := filepath.Join(dir, "libfoo.so")
	if err := os.Symlink(lib, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	tool := filepath.Join(dir, "tool")
	if err := os.WriteFile(tool, []byte("\x7fELF"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	libResolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	toolResolved, err := filepath.EvalSymlinks(tool)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}

	tests := []struct {
		name        string
		host        string
		role        PathRole
		wantHost    string
		wantSandbox SandboxPath
	}{
		{
			name:        "library through symlink keeps declared basename",
			host:        link,
			role:        RoleSharedLibrary,
			wantHost:    libResolved,
			wantSandbox: "/usr/lib/libfoo.so",
		},
		{
			name:        "executable goes under /usr/bin",
			host:        tool,
			role:        RoleExecutable,
			wantHost:    toolResolved,
			wantSandbox: "/usr/bin/tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DeriveBind(HostPath(tt.host), tt.role)
			if err != nil {
				t.Fatalf("DeriveBind: %v", err)
			}
			if !m.ReadOnly {
				t.Error("derived bind must be read-only")
			}
			if m.Dir {
				t.Error("derived bind must not be a directory directive")
			}
			if string(m.Host) != tt.wantHost {
				t.Errorf("host = %q, want %q", m.Host, tt.wantHost)
			}
			if m.Sandbox != tt.wantSandbox {
				t.Errorf("sandbox path = %q, want %q", m.Sandbox, tt.wantSandbox)
			}
		})
	}
}

func TestDeriveBindMissing(t *testing.T) {
	_, err := DeriveBind(HostPath(filepath.Join(t.TempDir(), "nope.so")), RoleSharedLibrary)
	if err == nil {
		t.Fatal("expected error for unresolvable dependency")
	}
}

func TestDeriveBindNotExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "data")
	if err := os.WriteFile(plain, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := DeriveBind(HostPath(plain), RoleExecutable); err == nil {
		t.Error("expected error for non-executable artifact with executable role")
	}
	if _, err := DeriveBind(HostPath(plain), RoleSharedLibrary); err != nil {
		t.Errorf("shared-library role must not require execute permission: %v", err)
	}
}

func TestDeriveBindsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "liba.so")
	if err := os.WriteFile(ok, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mounts, err := DeriveBinds([]Artifact{
		{Role: RoleSharedLibrary, Host: HostPath(ok)},
		{Role: RoleSharedLibrary, Host: HostPath(filepath.Join(dir, "libmissing.so"))},
	})
	if err == nil {
		t.Fatal("expected error for partial dependency set")
	}
	if mounts != nil {
		t.Error("no mounts may be returned when any dependency is unsatisfiable")
	}
}

func TestParsePathRole(t *testing.T) {
	tests := []struct {
		input   string
		want    PathRole
		wantErr bool
	}{
		{"executable", RoleExecutable, false},
		{"shared-library", RoleSharedLibrary, false},
		{"library", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			role, err := ParsePathRole(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePathRole: %v", err)
			}
			if role != tt.want {
				t.Errorf("role = %v, want %v", role, tt.want)
			}
			if role.Dir() == "" {
				t.Error("role must map to a canonical directory")
			}
		})
	}
}
