// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Manifest wire format. Authored as JSONC: JSON extended with // line
// comments, /* block comments */, and trailing commas.
type manifestFile struct {
	ID    string       `json:"id"`
	Build buildSection `json:"build"`
	RDeps []string     `json:"rdeps"`
	BDeps []string     `json:"bdeps"`
}

// buildSection is a tagged union keyed by which field is present.
// "cmds" selects the command-sequence variant; future variants add
// further fields.
type buildSection struct {
	Cmds []buildCmdEntry `json:"cmds"`
}

type buildCmdEntry struct {
	Program   string   `json:"program"`
	Arguments []string `json:"arguments"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and validates the result into a SourceProject.
func Parse(data []byte) (*SourceProject, error) {
	stripped := jsonc.ToJSON(data)

	var file manifestFile
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if file.Build.Cmds == nil {
		return nil, fmt.Errorf("manifest %q: build declares no known process (expected \"cmds\")", file.ID)
	}
	commands := make([]BuildCmd, 0, len(file.Build.Cmds))
	for _, entry := range file.Build.Cmds {
		commands = append(commands, BuildCmd{
			Program:   entry.Program,
			Arguments: entry.Arguments,
		})
	}

	p := &SourceProject{
		ID:          ProjectID(file.ID),
		Build:       &Cmds{Commands: commands},
		RuntimeDeps: toProjectIDs(file.RDeps),
		BuildDeps:   toProjectIDs(file.BDeps),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadManifest reads and parses a JSONC manifest file from disk.
func ReadManifest(path string) (*SourceProject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func toProjectIDs(names []string) []ProjectID {
	if len(names) == 0 {
		return nil
	}
	ids := make([]ProjectID, len(names))
	for i, name := range names {
		ids[i] = ProjectID(name)
	}
	return ids
}
