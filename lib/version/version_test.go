// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	if !strings.Contains(Info(), Version) {
		t.Errorf("Info() = %q, want the version string included", Info())
	}
	if !strings.Contains(Info(), GitCommit) {
		t.Errorf("Info() = %q, want the commit included", Info())
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Info()) {
		t.Errorf("Full() = %q, want Info() included", full)
	}
	if !strings.Contains(full, runtime.Version()) {
		t.Errorf("Full() = %q, want the Go version included", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q, want the platform included", full)
	}
}
