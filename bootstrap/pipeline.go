// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Bitbot25/unpak/project"
	"github.com/Bitbot25/unpak/sandbox"
	"github.com/Bitbot25/unpak/store"
)

// ErrHostLeakage means a dependency artifact of a stage-two build
// resolved to a location outside the artifact store.
var ErrHostLeakage = errors.New("dependency artifact resolves outside the store")

// StageBuild is one build of the pipeline: a project built at a stage,
// writing its outputs (bin/, lib/ subtrees) to OutputDir.
type StageBuild struct {
	Stage     Stage
	Project   *project.SourceProject
	OutputDir string
}

// Pipeline runs a sequence of stage builds against one store.
type Pipeline struct {
	// Store records build outputs and resolves dependencies for
	// sandboxed stages. Required.
	Store *store.Store

	// Logger receives per-stage progress. Defaults to slog.Default().
	Logger *slog.Logger

	// Interpreter is the host ELF interpreter bound into sandboxed
	// builds. Defaults to sandbox.DefaultInterpreter.
	Interpreter sandbox.HostPath

	// BwrapPath overrides bwrap discovery for sandboxed stages.
	BwrapPath string
}

// Run executes the builds in order. Stages must advance linearly: each
// build runs at the same stage as its predecessor or the one after it,
// never skipping ahead or falling back. The first failed build aborts
// the run; its outputs are not recorded.
func (p *Pipeline) Run(ctx context.Context, builds []StageBuild) error {
	if p.Store == nil {
		return errors.New("pipeline requires a store")
	}
	if err := checkSequence(builds); err != nil {
		return err
	}
	logger := p.logger()

	for _, b := range builds {
		logger.Info("building",
			"project", b.Project.ID,
			"stage", b.Stage,
			"sandboxed", b.Stage.Sandboxed(),
		)

		runner := &project.Runner{
			Logger:      logger,
			Sandboxed:   b.Stage.Sandboxed(),
			Resolver:    p.resolver(b.Stage),
			Interpreter: p.Interpreter,
			BwrapPath:   p.BwrapPath,
		}
		if err := runner.Build(ctx, b.Project); err != nil {
			return fmt.Errorf("stage %s build of %s: %w", b.Stage, b.Project.ID, err)
		}

		entry, err := p.Store.Record(b.Project.ID, b.Stage.String(), b.OutputDir)
		if err != nil {
			return fmt.Errorf("stage %s build of %s: %w", b.Stage, b.Project.ID, err)
		}
		logger.Info("recorded build outputs",
			"project", b.Project.ID,
			"stage", b.Stage,
			"digest", entry.Digest,
			"size", entry.Size,
		)
	}
	return nil
}

// resolver returns the dependency resolver for a stage. Once the host
// is no longer trusted, every resolved artifact is checked against the
// store boundary.
func (p *Pipeline) resolver(s Stage) project.Resolver {
	if s.HostTrusted() {
		return p.Store
	}
	return &guardedResolver{store: p.Store}
}

// checkSequence verifies the builds advance linearly through stages.
func checkSequence(builds []StageBuild) error {
	if len(builds) == 0 {
		return errors.New("no builds to run")
	}
	for i, b := range builds {
		if !b.Stage.valid() {
			return fmt.Errorf("build %d: invalid stage %d", i, int(b.Stage))
		}
		if b.Project == nil {
			return fmt.Errorf("build %d: no project", i)
		}
		if i == 0 {
			continue
		}
		prev := builds[i-1].Stage
		if b.Stage != prev && b.Stage != prev.Next() {
			return fmt.Errorf("build %d: stage %s cannot follow %s", i, b.Stage, prev)
		}
	}
	return nil
}

// guardedResolver wraps the store's resolver and rejects any artifact
// whose host path escapes the store, symlinks included.
type guardedResolver struct {
	store *store.Store
}

func (g *guardedResolver) Resolve(id project.ProjectID) ([]sandbox.Artifact, error) {
	artifacts, err := g.store.Resolve(id)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if !g.store.Contains(a.Host) {
			return nil, fmt.Errorf("artifact %s of %s: %w", a.Host, id, ErrHostLeakage)
		}
	}
	return artifacts, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
