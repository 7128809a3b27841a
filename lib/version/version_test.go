// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime = "unknown", "false", "unknown"
	})

	GitCommit, GitDirty, BuildTime = "abc1234", "false", "2026-10-14T00:00:00Z"
	if got, want := Info(), "0.1.0-dev (abc1234, 2026-10-14T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want a dirty marker", got)
	}
}

func TestFprint(t *testing.T) {
	var buffer bytes.Buffer
	Fprint(&buffer, "claimcheck")
	output := buffer.String()
	if !strings.HasPrefix(output, "claimcheck "+Info()) {
		t.Errorf("Fprint output %q does not start with the binary and Info()", output)
	}
	if !strings.Contains(output, "Go: ") {
		t.Errorf("Fprint output %q lacks the Go version", output)
	}
}
