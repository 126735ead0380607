// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap drives unpak's staged toolchain builds.
//
// A toolchain is built in three stages. [StageBootstrap] runs directly
// on the host: the host's compiler and tools are trusted because there
// is nothing else to build with yet. [StageOne] runs fully sandboxed,
// composing the sandbox from the bootstrap stage's recorded outputs.
// [StageTwo] rebuilds with the stage-one toolchain and additionally
// refuses any dependency artifact that resolves outside the artifact
// store: from this point on, a host tool can never silently substitute
// a declared dependency. Stages advance linearly; a build sequence may
// repeat a stage but never skip one or go backwards.
//
// [Pipeline.Run] executes a sequence of stage builds, recording each
// successful build's output tree in the store so later stages can
// resolve it.
package bootstrap
