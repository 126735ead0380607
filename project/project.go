// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"fmt"
	"strings"
)

// ProjectID uniquely names a buildable project. By convention it is a
// reverse domain name, e.g. "org.gnu.glibc". Identity is value
// equality on the string.
type ProjectID string

// Validate checks the identifier shape.
func (id ProjectID) Validate() error {
	if id == "" {
		return fmt.Errorf("project id is empty")
	}
	if strings.ContainsAny(string(id), " \t\n/") {
		return fmt.Errorf("project id %q contains whitespace or path separators", id)
	}
	return nil
}

// SourceProject is a buildable project parsed from a manifest. It is
// read-only once parsed.
type SourceProject struct {
	// ID names the project.
	ID ProjectID

	// Build is the process that produces the project's artifacts.
	Build BuildProcess

	// RuntimeDeps are projects the built artifact needs at run time.
	RuntimeDeps []ProjectID

	// BuildDeps are projects needed only while building.
	BuildDeps []ProjectID
}

// Validate checks structural invariants: a well-formed identifier, a
// build process, and no self-dependency.
func (p *SourceProject) Validate() error {
	if err := p.ID.Validate(); err != nil {
		return err
	}
	if p.Build == nil {
		return fmt.Errorf("project %s: no build process", p.ID)
	}
	if err := p.Build.validate(); err != nil {
		return fmt.Errorf("project %s: %w", p.ID, err)
	}
	for _, dep := range p.RuntimeDeps {
		if dep == p.ID {
			return fmt.Errorf("project %s depends on itself (rdeps)", p.ID)
		}
	}
	for _, dep := range p.BuildDeps {
		if dep == p.ID {
			return fmt.Errorf("project %s depends on itself (bdeps)", p.ID)
		}
	}
	return nil
}

// Dependencies returns the build-time dependency closure declared by
// the manifest: build deps followed by runtime deps, deduplicated,
// order preserved. Both sets are mounted into the build sandbox — the
// build needs its tools and the libraries the result links against.
func (p *SourceProject) Dependencies() []ProjectID {
	seen := make(map[ProjectID]bool)
	var deps []ProjectID
	for _, id := range append(append([]ProjectID{}, p.BuildDeps...), p.RuntimeDeps...) {
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}
	return deps
}

// BuildProcess is the sealed set of build strategies a manifest can
// declare.
type BuildProcess interface {
	// validate checks the variant's own invariants.
	validate() error
}

// Cmds is the command-sequence build strategy: an ordered list of
// commands executed strictly in order. The first non-zero exit is
// fatal to the whole build.
type Cmds struct {
	Commands []BuildCmd
}

func (c *Cmds) validate() error {
	for i, cmd := range c.Commands {
		if cmd.Program == "" {
			return fmt.Errorf("build command %d has no program", i)
		}
	}
	return nil
}

// BuildCmd is one external command of a [Cmds] build. Program and
// arguments are passed through exactly as declared: no shell
// interpretation, no implicit quoting or splitting.
type BuildCmd struct {
	Program   string
	Arguments []string
}

// String renders the command for logs and error messages.
func (c BuildCmd) String() string {
	if len(c.Arguments) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Arguments, " ")
}
