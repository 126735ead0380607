// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import "fmt"

// Stage identifies how far through the bootstrap a build runs.
type Stage int

const (
	// StageBootstrap builds with host tools, unsandboxed.
	StageBootstrap Stage = iota

	// StageOne builds sandboxed from the bootstrap outputs.
	StageOne

	// StageTwo rebuilds with the stage-one toolchain; dependency
	// artifacts must live inside the store. Post-bootstrap package
	// builds stay at this stage.
	StageTwo
)

// String returns the ledger spelling of the stage.
func (s Stage) String() string {
	switch s {
	case StageBootstrap:
		return "bootstrap"
	case StageOne:
		return "stage1"
	case StageTwo:
		return "stage2"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseStage parses a stage from its ledger spelling.
func ParseStage(name string) (Stage, error) {
	switch name {
	case "bootstrap":
		return StageBootstrap, nil
	case "stage1":
		return StageOne, nil
	case "stage2":
		return StageTwo, nil
	default:
		return 0, fmt.Errorf("unknown stage: %q", name)
	}
}

// Next returns the stage that follows. StageTwo is terminal: every
// build after the bootstrap completes runs at stage two.
func (s Stage) Next() Stage {
	if s >= StageTwo {
		return StageTwo
	}
	return s + 1
}

// Sandboxed reports whether builds at this stage run inside a sandbox.
func (s Stage) Sandboxed() bool {
	return s >= StageOne
}

// HostTrusted reports whether builds at this stage may still resolve
// dependency artifacts from outside the store.
func (s Stage) HostTrusted() bool {
	return s < StageTwo
}

func (s Stage) valid() bool {
	return s >= StageBootstrap && s <= StageTwo
}
