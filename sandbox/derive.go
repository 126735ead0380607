// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Artifact pairs a declared host dependency with the role under which
// it is mounted into the sandbox.
type Artifact struct {
	Role PathRole
	Host HostPath
}

// DeriveBind turns a declared host artifact into a read-only bind
// mount at the role's canonical sandbox directory. The host path is
// resolved to its real, symlink-free absolute location first, so the
// sandbox never depends on a host-side symlink surviving; the sandbox
// path keeps the basename of the declared path.
//
// A path that cannot be resolved, or an executable-role artifact
// without execute permission, makes the dependency unsatisfiable.
func DeriveBind(host HostPath, role PathRole) (Mount, error) {
	resolved, err := filepath.EvalSymlinks(string(host))
	if err != nil {
		return Mount{}, fmt.Errorf("resolving dependency %s: %w", host, err)
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return Mount{}, fmt.Errorf("resolving dependency %s: %w", host, err)
	}

	if role == RoleExecutable {
		if err := unix.Access(resolved, unix.X_OK); err != nil {
			return Mount{}, fmt.Errorf("dependency %s is not executable: %w", host, err)
		}
	}

	target := SandboxPath(filepath.Join(string(role.Dir()), filepath.Base(string(host))))
	return BindRO(HostPath(resolved), target), nil
}

// DeriveBinds derives bind mounts for every artifact, in order. Any
// unresolvable artifact fails the whole set: a sandbox is never
// composed from a partial dependency list.
func DeriveBinds(artifacts []Artifact) ([]Mount, error) {
	mounts := make([]Mount, 0, len(artifacts))
	for _, a := range artifacts {
		m, err := DeriveBind(a.Host, a.Role)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

// BaselineDirs returns the placeholder directories present in every
// sandbox regardless of the declared dependency set. They exist so
// later binds under those roots have a parent to mount into.
func BaselineDirs() []Mount {
	return []Mount{
		TouchDir("/usr/sbin"),
		TouchDir("/usr/bin"),
	}
}

// BaselineSymlinks returns the compatibility symlinks created in every
// sandbox, so binaries built against either the legacy or the merged
// filesystem hierarchy resolve correctly.
func BaselineSymlinks() []Symlink {
	return []Symlink{
		{Target: InterpreterPath, LinkAt: "/usr/lib64/ld-linux-x86-64.so.2"},
		{Target: "/usr/lib", LinkAt: "/lib"},
		{Target: "/usr/lib64", LinkAt: "/lib64"},
		{Target: "/usr/bin", LinkAt: "/bin"},
		{Target: "/usr/sbin", LinkAt: "/sbin"},
	}
}

// Compose returns a builder pre-populated with the baseline directives
// and the derived dependency binds: placeholder directories first, then
// the dependency binds in declaration order, then the interpreter bind,
// then the compatibility symlinks. Directives identical to one already
// present are skipped, so the baseline appears exactly once even when
// the dependency set overlaps it.
//
// interpreter is the host ELF interpreter to bind at [InterpreterPath];
// pass [DefaultInterpreter] unless configured otherwise.
func Compose(artifacts []Artifact, interpreter HostPath) (*Builder, error) {
	binds, err := DeriveBinds(artifacts)
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	b.AddMounts(BaselineDirs())
	for _, m := range binds {
		if !containsMount(b.mounts, m) {
			b.AddMount(m)
		}
	}

	ld := BindRO(interpreter, InterpreterPath)
	if !containsMount(b.mounts, ld) {
		b.AddMount(ld)
	}

	b.AddSymlinks(BaselineSymlinks())
	return b, nil
}

func containsMount(mounts []Mount, m Mount) bool {
	for _, existing := range mounts {
		if existing == m {
			return true
		}
	}
	return false
}
