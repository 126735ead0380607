// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "fmt"

// HostPath is a filesystem location on the host side of the isolation
// boundary. It must never be used as a path inside the sandbox without
// an explicit derivation step such as [DeriveBind].
type HostPath string

// SandboxPath is a filesystem location inside the sandbox's mount
// namespace. It has no meaning on the host.
type SandboxPath string

// PathRole classifies a dependency artifact and selects the canonical
// sandbox directory it is mounted under.
type PathRole int

const (
	// RoleExecutable artifacts are mounted under /usr/bin.
	RoleExecutable PathRole = iota

	// RoleSharedLibrary artifacts are mounted under /usr/lib.
	RoleSharedLibrary
)

// Canonical sandbox directories for each role. Fixed by convention:
// binaries compiled against the filesystem hierarchy standard expect
// their dependencies here.
const (
	ExecutableDir    SandboxPath = "/usr/bin"
	SharedLibraryDir SandboxPath = "/usr/lib"
)

// DefaultInterpreter is the host ELF interpreter bound into every
// sandbox when no other interpreter is configured.
const DefaultInterpreter HostPath = "/lib64/ld-linux-x86-64.so.2"

// InterpreterPath is the conventional sandbox location of the ELF
// interpreter. Binaries patched with [PatchInterpreter] load it from
// here.
const InterpreterPath SandboxPath = "/usr/lib/ld-linux-x86-64.so.2"

// Dir returns the canonical sandbox directory for the role.
func (r PathRole) Dir() SandboxPath {
	switch r {
	case RoleExecutable:
		return ExecutableDir
	case RoleSharedLibrary:
		return SharedLibraryDir
	default:
		panic(fmt.Sprintf("sandbox: unknown path role %d", int(r)))
	}
}

// String returns the manifest/store spelling of the role.
func (r PathRole) String() string {
	switch r {
	case RoleExecutable:
		return "executable"
	case RoleSharedLibrary:
		return "shared-library"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ParsePathRole parses a role from its string spelling.
func ParsePathRole(name string) (PathRole, error) {
	switch name {
	case "executable":
		return RoleExecutable, nil
	case "shared-library":
		return RoleSharedLibrary, nil
	default:
		return 0, fmt.Errorf("unknown path role %q (must be executable or shared-library)", name)
	}
}
