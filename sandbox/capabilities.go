// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"strings"
)

// Capabilities describes which sandbox features are available on this
// host.
type Capabilities struct {
	// BwrapAvailable is true if bubblewrap is installed.
	BwrapAvailable bool

	// BwrapPath is the path to bwrap if available.
	BwrapPath string

	// BwrapVersion is the bwrap version string.
	BwrapVersion string

	// UserNamespacesEnabled is true if unprivileged user namespaces
	// work, which bwrap needs when not installed setuid.
	UserNamespacesEnabled bool

	// PatchelfAvailable is true if patchelf is installed, needed to
	// rewrite ELF interpreters for non-compliant bootstrap binaries.
	PatchelfAvailable bool
}

// DetectCapabilities probes the host for sandbox features.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{}

	if path, err := BwrapPath(); err == nil {
		caps.BwrapAvailable = true
		caps.BwrapPath = path

		if out, err := exec.Command(path, "--version").Output(); err == nil {
			caps.BwrapVersion = strings.TrimSpace(string(out))
		}
	}

	caps.UserNamespacesEnabled = checkUserNamespaces()

	if _, err := exec.LookPath("patchelf"); err == nil {
		caps.PatchelfAvailable = true
	}

	return caps
}

// CanSandbox reports whether sandboxed builds are possible at all.
func (c *Capabilities) CanSandbox() bool {
	return c.BwrapAvailable && c.UserNamespacesEnabled
}

// SkipReason returns why sandboxing is unavailable, or "" if it works.
func (c *Capabilities) SkipReason() string {
	if !c.BwrapAvailable {
		return "bubblewrap not installed"
	}
	if !c.UserNamespacesEnabled {
		return "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
	}
	return ""
}

// checkUserNamespaces tests whether unprivileged user namespaces work.
func checkUserNamespaces() bool {
	// Debian-family kernels gate userns behind a sysctl.
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return false
	}

	bwrap, err := BwrapPath()
	if err != nil {
		return false
	}

	// The definitive test: actually enter a user namespace.
	cmd := exec.Command(bwrap, "--unshare-user", "--ro-bind", "/", "/", "--", "true")
	return cmd.Run() == nil
}
