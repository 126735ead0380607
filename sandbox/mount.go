// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// Mount is a single filesystem directive applied to the sandbox: either
// an empty directory with no host backing, or a bind of a host path at
// a sandbox path.
type Mount struct {
	// Dir, when true, creates an empty directory at Sandbox. Host and
	// ReadOnly are ignored for directory mounts.
	Dir bool

	// ReadOnly marks a bind mount read-only. The read-only property is
	// enforced by the kernel via bwrap, not by this package.
	ReadOnly bool

	// Host is the bind source on the host. Empty for directory mounts.
	Host HostPath

	// Sandbox is where the directory or bind appears inside the sandbox.
	Sandbox SandboxPath
}

// TouchDir returns a directive creating an empty directory at path.
// Used for directories that must exist but have no content, such as
// /usr/sbin.
func TouchDir(path SandboxPath) Mount {
	return Mount{Dir: true, Sandbox: path}
}

// BindRO returns a read-only bind of host at path.
func BindRO(host HostPath, path SandboxPath) Mount {
	return Mount{ReadOnly: true, Host: host, Sandbox: path}
}

// BindRW returns a read-write bind of host at path.
func BindRW(host HostPath, path SandboxPath) Mount {
	return Mount{Host: host, Sandbox: path}
}

// Symlink is a sandbox-internal symlink, created after all mounts are
// applied. Both ends are sandbox paths; a symlink can never point at
// the host.
type Symlink struct {
	// Target is what the link points to.
	Target SandboxPath

	// LinkAt is where the link is created.
	LinkAt SandboxPath
}
