// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound is returned when a location does not resolve to a
	// stored payload. It matches fs.ErrNotExist as well.
	ErrNotFound = fmt.Errorf("claimstore: payload not found: %w", fs.ErrNotExist)

	// ErrDigestMismatch is returned at end-of-data by a redeemed reader
	// whose content does not match its digest sidecar.
	ErrDigestMismatch = errors.New("claimstore: payload digest mismatch")
)

// errThresholdExceeded signals that an encoding attempt outgrew the
// inline threshold. It never escapes the package.
var errThresholdExceeded = errors.New("claimstore: inline threshold exceeded")

// isThresholdExceeded reports whether err is (or wraps) the threshold
// overflow sentinel.
func isThresholdExceeded(err error) bool {
	return errors.Is(err, errThresholdExceeded)
}
