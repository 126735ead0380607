// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const exampleManifest = `{
	// The package manager itself.
	"id": "com.github.osten.unpak",
	"build": {
		"cmds": [
			{"program": "/usr/bin/make", "arguments": ["all"]},
			{"program": "/usr/bin/make", "arguments": ["install"]}, // trailing comma next
		],
	},
	"rdeps": ["org.gnu.glibc"],
	"bdeps": ["org.gnu.gcc", "org.gnu.make"],
}`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(exampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.ID != "com.github.osten.unpak" {
		t.Errorf("id = %q", p.ID)
	}

	cmds, ok := p.Build.(*Cmds)
	if !ok {
		t.Fatalf("build process = %T, want *Cmds", p.Build)
	}
	if len(cmds.Commands) != 2 {
		t.Fatalf("commands = %d, want 2", len(cmds.Commands))
	}
	if cmds.Commands[0].String() != "/usr/bin/make all" {
		t.Errorf("first command = %q", cmds.Commands[0].String())
	}

	if len(p.RuntimeDeps) != 1 || p.RuntimeDeps[0] != "org.gnu.glibc" {
		t.Errorf("rdeps = %v", p.RuntimeDeps)
	}
	if len(p.BuildDeps) != 2 {
		t.Errorf("bdeps = %v", p.BuildDeps)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name:     "no build variant",
			manifest: `{"id": "org.example.a", "build": {}}`,
			wantErr:  "no known process",
		},
		{
			name:     "empty id",
			manifest: `{"build": {"cmds": []}}`,
			wantErr:  "id is empty",
		},
		{
			name:     "self dependency",
			manifest: `{"id": "org.example.a", "build": {"cmds": []}, "rdeps": ["org.example.a"]}`,
			wantErr:  "depends on itself",
		},
		{
			name:     "command without program",
			manifest: `{"id": "org.example.a", "build": {"cmds": [{"arguments": ["x"]}]}}`,
			wantErr:  "no program",
		},
		{
			name:     "malformed json",
			manifest: `{"id": `,
			wantErr:  "parsing manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unpak.jsonc")
	if err := os.WriteFile(path, []byte(exampleManifest), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if p.ID != "com.github.osten.unpak" {
		t.Errorf("id = %q", p.ID)
	}

	if _, err := ReadManifest(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDependencies(t *testing.T) {
	p := &SourceProject{
		ID:          "org.example.a",
		Build:       &Cmds{},
		RuntimeDeps: []ProjectID{"org.example.libc", "org.example.shared"},
		BuildDeps:   []ProjectID{"org.example.cc", "org.example.shared"},
	}

	want := []ProjectID{"org.example.cc", "org.example.shared", "org.example.libc"}
	got := p.Dependencies()
	if len(got) != len(want) {
		t.Fatalf("deps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("deps[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
