// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// Package project defines buildable source projects and executes their
// build processes.
//
// A [SourceProject] is the parsed form of a project manifest: an
// identifier (reverse-domain convention), a build process, and two
// dependency lists — runtime dependencies needed by the produced
// artifact, and build dependencies needed only while building.
// Manifests are authored on disk as JSONC (JSON extended with comments
// and trailing commas) and parsed by [ReadManifest].
//
// [BuildProcess] is a sealed interface with one variant today, [Cmds]:
// an ordered command sequence executed strictly in order, no shell
// interpretation, first failure fatal. New build strategies (recipe
// steps, declarative phases) can be added as further variants without
// breaking existing manifests.
//
// [Runner] executes a build either directly on the host or inside a
// sandbox composed from the project's declared dependencies. Dependency
// identifiers are mapped to host artifacts by a [Resolver]; the store
// package provides the standard implementation.
package project
