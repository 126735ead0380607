// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox composes isolated build environments from declared
// dependency sets using bubblewrap (bwrap) Linux namespaces.
//
// The central type is [Builder], which accumulates mount directives,
// symlink directives, an environment policy, namespace flags, and a
// target program, then finalizes the whole specification into a single
// bwrap invocation and spawns it. A Builder is consumed by
// [Builder.Finalize]; any later mutation or second finalize fails with
// [ErrFinalized] without spawning anything.
//
// Host and sandbox locations are distinct types ([HostPath] and
// [SandboxPath]) so that a host path can never leak into a
// sandbox-relative argument without an explicit derivation step.
// [DeriveBind] is that step: given a host artifact and its [PathRole],
// it resolves the artifact to its real, symlink-free host location and
// produces a read-only bind mount at the role's canonical sandbox
// directory. [Compose] wraps derivation with the baseline directives
// every sandbox needs: placeholder /usr/bin and /usr/sbin directories,
// the ELF interpreter bind, and the filesystem-hierarchy compatibility
// symlinks (/bin -> /usr/bin and friends).
//
// Advisory safety findings (inherited host environment, terminal
// control left with the child) are returned from finalization as a
// structured [Diagnostic] list rather than printed, so callers and
// tests can assert on them. They never fail the build.
//
// [Capabilities] probes the host for bwrap, unprivileged user
// namespaces, and patchelf. [PatchInterpreter] is the external
// patchelf step that rewrites a binary's ELF interpreter to the
// conventional in-sandbox path.
package sandbox
