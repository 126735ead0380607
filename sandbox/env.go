// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// EnvVar is one explicit environment variable for the sandboxed
// process. Order of declaration is preserved in the emitted argv.
type EnvVar struct {
	Name  string
	Value string
}

// EnvironmentPolicy selects how the sandboxed process's environment is
// composed.
type EnvironmentPolicy int

const (
	// EnvInherit passes the full host environment through to the
	// sandboxed process. Finalization reports this as a diagnostic:
	// anything in the host environment becomes visible to sandboxed
	// code.
	EnvInherit EnvironmentPolicy = iota

	// EnvExplicit starts from an empty environment and sets only the
	// variables added with [Builder.AddEnv]. An explicit policy with no
	// variables clears the environment entirely.
	EnvExplicit
)

// String returns the policy name for logs and diagnostics.
func (p EnvironmentPolicy) String() string {
	switch p {
	case EnvInherit:
		return "inherit"
	case EnvExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}
