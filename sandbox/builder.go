// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Sentinel errors for builder misuse and environment problems. All are
// configuration errors surfaced before any process is spawned.
var (
	// ErrNoProgram means Finalize was called without a target program.
	ErrNoProgram = errors.New("no program set for the sandbox")

	// ErrFinalized means the builder was already consumed by Finalize.
	ErrFinalized = errors.New("sandbox builder already finalized")

	// ErrInheritedEnvironment means AddEnv was called while the policy
	// is EnvInherit. Switch to EnvExplicit first.
	ErrInheritedEnvironment = errors.New("cannot add environment variables while the policy is inherit")

	// ErrBwrapNotFound means the bubblewrap launcher is not installed.
	ErrBwrapNotFound = errors.New("bwrap not found; is bubblewrap installed?")
)

// Diagnostic is an advisory safety finding produced during
// finalization. Diagnostics never fail the build; they are returned so
// callers can log them or tests can assert on them.
type Diagnostic struct {
	// Code is a stable machine-readable identifier.
	Code string

	// Message is the human-readable explanation.
	Message string
}

// Diagnostic codes.
const (
	// DiagInheritedEnvironment: the full host environment is exposed to
	// sandboxed code.
	DiagInheritedEnvironment = "inherited-environment"

	// DiagTerminalControl: neither a new session nor output detachment
	// was requested, so the sandboxed process can control the invoking
	// terminal (TIOCSTI-style escape vector).
	DiagTerminalControl = "terminal-control"
)

// Builder accumulates a sandbox specification and finalizes it into a
// running bwrap child process. The zero value is not usable; call
// [NewBuilder].
//
// Directives are appended in call order with no validation or
// deduplication; the order is passed through unchanged to bwrap, which
// applies mounts and symlinks in that order. A Builder is consumed by
// [Builder.Finalize]: afterwards the chainable mutators become inert
// no-ops, and the error-returning operations ([Builder.AddEnv], a
// second Finalize) return [ErrFinalized].
type Builder struct {
	mounts   []Mount
	symlinks []Symlink

	pathVar string
	workdir SandboxPath

	unsharePID   bool
	newSession   bool
	detachOutput bool

	program     SandboxPath
	programArgs []string
	hasProgram  bool

	envPolicy EnvironmentPolicy
	envVars   []EnvVar

	// bwrap overrides launcher discovery, for configuration and tests.
	bwrap string

	finalized bool
}

// NewBuilder returns an empty builder with the inherit environment
// policy.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddMount appends a mount directive.
func (b *Builder) AddMount(m Mount) *Builder {
	if b.finalized {
		return b
	}
	b.mounts = append(b.mounts, m)
	return b
}

// AddMounts appends mount directives in order.
func (b *Builder) AddMounts(mounts []Mount) *Builder {
	for _, m := range mounts {
		b.AddMount(m)
	}
	return b
}

// AddSymlink appends a symlink directive.
func (b *Builder) AddSymlink(s Symlink) *Builder {
	if b.finalized {
		return b
	}
	b.symlinks = append(b.symlinks, s)
	return b
}

// AddSymlinks appends symlink directives in order.
func (b *Builder) AddSymlinks(symlinks []Symlink) *Builder {
	for _, s := range symlinks {
		b.AddSymlink(s)
	}
	return b
}

// SetProgram sets the sandbox entry point and its arguments. Calling it
// again overwrites the previous value. The program is emitted as the
// final positional bwrap argument, followed by its arguments.
func (b *Builder) SetProgram(program SandboxPath, args ...string) *Builder {
	if b.finalized {
		return b
	}
	b.program = program
	b.programArgs = args
	b.hasProgram = true
	return b
}

// SetPath sets a PATH override inside the sandbox.
func (b *Builder) SetPath(value string) *Builder {
	if b.finalized {
		return b
	}
	b.pathVar = value
	return b
}

// SetWorkdir sets the working directory inside the sandbox.
func (b *Builder) SetWorkdir(dir SandboxPath) *Builder {
	if b.finalized {
		return b
	}
	b.workdir = dir
	return b
}

// UnsharePID gives the sandboxed process its own PID namespace.
func (b *Builder) UnsharePID(unshare bool) *Builder {
	if b.finalized {
		return b
	}
	b.unsharePID = unshare
	return b
}

// NewSession detaches the sandboxed process from the controlling
// terminal by running it in a new session. Breaks job control.
func (b *Builder) NewSession(newSession bool) *Builder {
	if b.finalized {
		return b
	}
	b.newSession = newSession
	return b
}

// DetachOutput redirects the child's stdout and stderr to the null
// sink instead of inheriting the parent's descriptors.
func (b *Builder) DetachOutput(detach bool) *Builder {
	if b.finalized {
		return b
	}
	b.detachOutput = detach
	return b
}

// SetBwrapPath overrides launcher discovery with an explicit bwrap
// binary path.
func (b *Builder) SetBwrapPath(path string) *Builder {
	if b.finalized {
		return b
	}
	b.bwrap = path
	return b
}

// SetEnvironmentPolicy switches the environment policy. Switching to
// EnvExplicit resets any previously accumulated explicit variables.
func (b *Builder) SetEnvironmentPolicy(policy EnvironmentPolicy) *Builder {
	if b.finalized {
		return b
	}
	b.envPolicy = policy
	b.envVars = nil
	return b
}

// AddEnv adds an explicit environment variable. The policy must be
// EnvExplicit; under EnvInherit the caller has not opted out of
// inheritance and AddEnv returns [ErrInheritedEnvironment].
func (b *Builder) AddEnv(name, value string) error {
	if b.finalized {
		return ErrFinalized
	}
	if b.envPolicy != EnvExplicit {
		return ErrInheritedEnvironment
	}
	b.envVars = append(b.envVars, EnvVar{Name: name, Value: value})
	return nil
}

// Args translates the accumulated specification into the bwrap argument
// vector, without spawning anything. The emitted order is fixed:
// mounts, symlinks, PATH override, working directory, PID unshare, new
// session, environment policy, then the target program and its
// arguments.
//
// Args does not consume the builder; it backs both [Builder.Finalize]
// and dry runs.
func (b *Builder) Args() ([]string, []Diagnostic, error) {
	if !b.hasProgram {
		return nil, nil, ErrNoProgram
	}

	var args []string
	for _, m := range b.mounts {
		if m.Dir {
			args = append(args, "--dir", string(m.Sandbox))
			continue
		}
		flag := "--bind"
		if m.ReadOnly {
			flag = "--ro-bind"
		}
		args = append(args, flag, string(m.Host), string(m.Sandbox))
	}

	for _, s := range b.symlinks {
		args = append(args, "--symlink", string(s.Target), string(s.LinkAt))
	}

	if b.pathVar != "" {
		args = append(args, "--setenv", "PATH", b.pathVar)
	}

	if b.workdir != "" {
		args = append(args, "--chdir", string(b.workdir))
	}

	if b.unsharePID {
		args = append(args, "--unshare-pid")
	}

	if b.newSession {
		args = append(args, "--new-session")
	}

	var diags []Diagnostic
	switch b.envPolicy {
	case EnvInherit:
		diags = append(diags, Diagnostic{
			Code:    DiagInheritedEnvironment,
			Message: "environment variables are inherited from the host",
		})
	case EnvExplicit:
		args = append(args, "--clearenv")
		for _, v := range b.envVars {
			args = append(args, "--setenv", v.Name, v.Value)
		}
	}

	if !b.newSession && !b.detachOutput {
		diags = append(diags, Diagnostic{
			Code:    DiagTerminalControl,
			Message: "sandboxed process can control the invoking terminal; request a new session or detach output",
		})
	}

	args = append(args, string(b.program))
	args = append(args, b.programArgs...)

	return args, diags, nil
}

// Finalize translates the accumulated specification into one bwrap
// invocation and spawns it. The builder is consumed: a second Finalize
// (or AddEnv afterwards) fails with [ErrFinalized] and never spawns a
// process; the chainable mutators become inert.
//
// Failure modes, all before the child exists: [ErrNoProgram],
// [ErrBwrapNotFound], or the underlying spawn error.
func (b *Builder) Finalize(ctx context.Context) (*Process, []Diagnostic, error) {
	if b.finalized {
		return nil, nil, ErrFinalized
	}

	args, diags, err := b.Args()
	if err != nil {
		return nil, diags, err
	}

	bwrap := b.bwrap
	if bwrap == "" {
		bwrap, err = BwrapPath()
		if err != nil {
			return nil, diags, err
		}
	}

	b.finalized = true

	cmd := exec.CommandContext(ctx, bwrap, args...)
	if b.detachOutput {
		// Leaving Stdout/Stderr nil connects them to the null device.
		cmd.Stdin = os.Stdin
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	// Own process group so the whole sandbox tree can be signalled.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, diags, fmt.Errorf("spawning bwrap: %w", err)
	}

	return &Process{cmd: cmd}, diags, nil
}

// Process is a handle to a running sandboxed child.
type Process struct {
	cmd *exec.Cmd
}

// PID returns the bwrap launcher's process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the sandboxed process exits. A non-zero exit is
// returned as *[ExitError] with the child's status; other wait failures
// are returned as-is.
func (p *Process) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("waiting for sandbox: %w", err)
}

// Kill terminates the sandboxed process.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

// ExitError reports a non-zero exit from a sandboxed or build command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exited with code %d", e.Code)
}

// IsExitError reports whether err carries a child exit status, and
// returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// BwrapPath locates the bwrap executable, checking the conventional
// locations before falling back to PATH lookup. Returns
// [ErrBwrapNotFound] when bubblewrap is not installed.
func BwrapPath() (string, error) {
	for _, path := range []string{"/usr/bin/bwrap", "/usr/local/bin/bwrap", "/bin/bwrap"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	return "", ErrBwrapNotFound
}
