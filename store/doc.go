// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is unpak's on-disk artifact store. It holds the
// recorded outputs of each build stage and is the only place sandboxed
// builds may resolve their dependencies from.
//
// Layout under the store root:
//
//	blobs/<digest>.tar.zst   compressed archive of a recorded output tree
//	projects/<id>/bin/       executables provided by the project
//	projects/<id>/lib/       shared libraries provided by the project
//	ledger.cbor              append-only record of everything recorded
//
// [Store.Record] imports a build's output tree: it archives the tree
// deterministically (sorted entries, zeroed timestamps), hashes the
// uncompressed archive with a keyed BLAKE3 digest, writes the
// compressed blob, copies the bin/ and lib/ subtrees into the
// project's artifact directory, and appends a ledger entry. Identical
// trees always produce identical digests.
//
// [Store.Resolve] implements the project package's Resolver: it maps a
// project identifier to role-tagged host artifacts from the project's
// bin/ and lib/ directories. [Store.Contains] reports whether a host
// path resolves (symlinks followed) to a location inside the store;
// the bootstrap package uses it to reject host leakage at stages where
// host tools are no longer trusted.
//
// The ledger uses CBOR Core Deterministic Encoding so the same logical
// record always has one byte representation.
package store
