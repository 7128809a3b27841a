// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the claim-check
// packages.
//
// [ChunkedReader] serves a fixed payload in a caller-chosen pattern of
// short reads, so decorators can be exercised against sources that
// return fewer bytes than requested. [ReadAllChunked] drains a reader
// with a fixed buffer size, the way a pipeline stage with its own
// buffer would.
//
// [CloseCounter] and [SinkRecorder] count Close, Commit, and Discard
// calls so tests can assert exactly-once finalization.
//
// [RequireErrorIs] wraps the errors.Is check that nearly every
// contract-violation test needs.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no internal dependencies.
package testutil
