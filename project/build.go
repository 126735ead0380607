// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/Bitbot25/unpak/sandbox"
)

// Resolver maps a dependency project identifier to the host artifacts
// it provides. Implemented by the store.
type Resolver interface {
	Resolve(id ProjectID) ([]sandbox.Artifact, error)
}

// CommandError attributes a build failure to the command that caused
// it. Later commands of the same build never ran.
type CommandError struct {
	Program   string
	Arguments []string
	Err       error
}

func (e *CommandError) Error() string {
	cmd := BuildCmd{Program: e.Program, Arguments: e.Arguments}
	return fmt.Sprintf("build command %q failed: %v", cmd.String(), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes project builds: one build at a time, each command
// spawned and waited on to completion before the next starts.
type Runner struct {
	// Logger receives build progress and sandbox diagnostics.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Sandboxed runs every build command inside a sandbox composed
	// from the project's declared dependencies. When false, commands
	// run directly on the host (bootstrap stage only).
	Sandboxed bool

	// Resolver maps dependency identifiers to host artifacts.
	// Required for sandboxed builds.
	Resolver Resolver

	// Interpreter is the host ELF interpreter bound into build
	// sandboxes. Defaults to sandbox.DefaultInterpreter.
	Interpreter sandbox.HostPath

	// BwrapPath overrides bwrap discovery for sandboxed builds.
	BwrapPath string
}

// Build executes the project's build process. The first command that
// exits non-zero or fails to spawn aborts the build; the error
// identifies the failing command.
func (r *Runner) Build(ctx context.Context, p *SourceProject) error {
	if err := p.Validate(); err != nil {
		return err
	}

	switch build := p.Build.(type) {
	case *Cmds:
		return r.runCmds(ctx, p, build)
	default:
		return fmt.Errorf("project %s: unsupported build process %T", p.ID, p.Build)
	}
}

func (r *Runner) runCmds(ctx context.Context, p *SourceProject, build *Cmds) error {
	logger := r.logger()

	// Resolve the full dependency set up front: a sandbox is never
	// composed from a partial dependency list, and an unsatisfiable
	// set aborts before any command runs.
	var artifacts []sandbox.Artifact
	if r.Sandboxed {
		if r.Resolver == nil {
			return fmt.Errorf("project %s: sandboxed build requires a dependency resolver", p.ID)
		}
		for _, dep := range p.Dependencies() {
			resolved, err := r.Resolver.Resolve(dep)
			if err != nil {
				return fmt.Errorf("project %s: dependency %s unsatisfiable: %w", p.ID, dep, err)
			}
			artifacts = append(artifacts, resolved...)
		}
	}

	for _, cmd := range build.Commands {
		logger.Info("executing build command",
			"project", p.ID,
			"command", cmd.String(),
			"sandboxed", r.Sandboxed,
		)

		var err error
		if r.Sandboxed {
			err = r.runSandboxed(ctx, logger, artifacts, cmd)
		} else {
			err = runOnHost(ctx, cmd)
		}
		if err != nil {
			return &CommandError{Program: cmd.Program, Arguments: cmd.Arguments, Err: err}
		}
	}
	return nil
}

func (r *Runner) runSandboxed(ctx context.Context, logger *slog.Logger, artifacts []sandbox.Artifact, cmd BuildCmd) error {
	b, err := sandbox.Compose(artifacts, r.interpreter())
	if err != nil {
		return err
	}

	b.SetEnvironmentPolicy(sandbox.EnvExplicit)
	if err := b.AddEnv("PATH", "/usr/bin:/usr/sbin"); err != nil {
		return err
	}
	b.UnsharePID(true)
	b.NewSession(true)
	if r.BwrapPath != "" {
		b.SetBwrapPath(r.BwrapPath)
	}
	b.SetProgram(sandbox.SandboxPath(cmd.Program), cmd.Arguments...)

	proc, diags, err := b.Finalize(ctx)
	for _, d := range diags {
		logger.Warn("sandbox diagnostic", "code", d.Code, "message", d.Message)
	}
	if err != nil {
		return err
	}

	err = proc.Wait()
	if code, ok := sandbox.IsExitError(err); ok {
		logger.Error("sandboxed command failed", "command", cmd.String(), "code", code)
	}
	return err
}

func runOnHost(ctx context.Context, cmd BuildCmd) error {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Arguments...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	err := c.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &sandbox.ExitError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("spawning %s: %w", cmd.Program, err)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) interpreter() sandbox.HostPath {
	if r.Interpreter != "" {
		return r.Interpreter
	}
	return sandbox.DefaultInterpreter
}
