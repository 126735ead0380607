// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/Bitbot25/unpak/project"
	"github.com/Bitbot25/unpak/sandbox"
	"github.com/Bitbot25/unpak/store"
)

func quietPipeline(t *testing.T, s *store.Store) *Pipeline {
	t.Helper()
	return &Pipeline{
		Store:       s,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interpreter: sandbox.HostPath(filepath.Join(t.TempDir(), "ld.so")),
		BwrapPath:   mustLook(t, "true"),
	}
}

func mustLook(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func trueProject(id project.ProjectID, deps ...project.ProjectID) *project.SourceProject {
	return &project.SourceProject{
		ID: id,
		Build: &project.Cmds{Commands: []project.BuildCmd{
			{Program: "true"},
		}},
		BuildDeps: deps,
	}
}

// outputTree pre-populates a build output directory so recording has
// something to archive.
func outputTree(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bin", name), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPipelineFullBootstrap(t *testing.T) {
	s := openStore(t)
	p := quietPipeline(t, s)

	builds := []StageBuild{
		{Stage: StageBootstrap, Project: trueProject("seed"), OutputDir: outputTree(t, "cc0")},
		{Stage: StageOne, Project: trueProject("toolchain", "seed"), OutputDir: outputTree(t, "cc1")},
		{Stage: StageTwo, Project: trueProject("final", "toolchain"), OutputDir: outputTree(t, "cc2")},
	}
	if err := p.Run(context.Background(), builds); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Ledger()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("ledger has %d entries, want 3", len(entries))
	}
	for i, want := range []string{"bootstrap", "stage1", "stage2"} {
		if entries[i].Stage != want {
			t.Errorf("entry %d stage = %q, want %q", i, entries[i].Stage, want)
		}
	}
}

func TestPipelineStageSequence(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
		ok     bool
	}{
		{"linear", []Stage{StageBootstrap, StageOne, StageTwo}, true},
		{"repeat stage", []Stage{StageOne, StageOne, StageTwo}, true},
		{"stage two onward", []Stage{StageTwo, StageTwo}, true},
		{"skip stage1", []Stage{StageBootstrap, StageTwo}, false},
		{"regress", []Stage{StageTwo, StageOne}, false},
		{"empty", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var builds []StageBuild
			for _, s := range tc.stages {
				builds = append(builds, StageBuild{Stage: s, Project: trueProject("p")})
			}
			err := checkSequence(builds)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected sequence error")
			}
		})
	}
}

func TestPipelineHostLeakage(t *testing.T) {
	s := openStore(t)
	p := quietPipeline(t, s)

	// Record a dependency, then tamper with its installed artifact so
	// it points outside the store.
	if err := p.Run(context.Background(), []StageBuild{
		{Stage: StageBootstrap, Project: trueProject("seed"), OutputDir: outputTree(t, "cc0")},
	}); err != nil {
		t.Fatal(err)
	}

	escape := filepath.Join(t.TempDir(), "host-cc")
	if err := os.WriteFile(escape, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	installed := filepath.Join(s.Root(), "projects", "seed", "bin", "cc0")
	if err := os.Remove(installed); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(escape, installed); err != nil {
		t.Fatal(err)
	}

	err := p.Run(context.Background(), []StageBuild{
		{Stage: StageTwo, Project: trueProject("toolchain", "seed"), OutputDir: outputTree(t, "cc2")},
	})
	if !errors.Is(err, ErrHostLeakage) {
		t.Fatalf("error = %v, want ErrHostLeakage", err)
	}
}

func TestPipelineStageOneTrustsHostPaths(t *testing.T) {
	s := openStore(t)
	p := quietPipeline(t, s)

	if err := p.Run(context.Background(), []StageBuild{
		{Stage: StageBootstrap, Project: trueProject("seed"), OutputDir: outputTree(t, "cc0")},
	}); err != nil {
		t.Fatal(err)
	}

	// Same tampering as the stage-two case; stage one still trusts it.
	escape := filepath.Join(t.TempDir(), "host-cc")
	if err := os.WriteFile(escape, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	installed := filepath.Join(s.Root(), "projects", "seed", "bin", "cc0")
	if err := os.Remove(installed); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(escape, installed); err != nil {
		t.Fatal(err)
	}

	if err := p.Run(context.Background(), []StageBuild{
		{Stage: StageOne, Project: trueProject("toolchain", "seed"), OutputDir: outputTree(t, "cc1")},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestPipelineFailedBuildNotRecorded(t *testing.T) {
	s := openStore(t)
	p := quietPipeline(t, s)

	failing := &project.SourceProject{
		ID: "seed",
		Build: &project.Cmds{Commands: []project.BuildCmd{
			{Program: mustLook(t, "false")},
		}},
	}
	err := p.Run(context.Background(), []StageBuild{
		{Stage: StageBootstrap, Project: failing, OutputDir: outputTree(t, "cc0")},
	})
	var cmdErr *project.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want CommandError", err)
	}

	entries, err := s.Ledger()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed build was recorded: %d ledger entries", len(entries))
	}
}

func TestPipelineRequiresStore(t *testing.T) {
	p := &Pipeline{}
	err := p.Run(context.Background(), []StageBuild{
		{Stage: StageBootstrap, Project: trueProject("seed")},
	})
	if err == nil {
		t.Fatal("expected error without a store")
	}
}
