// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "errors"

var (
	// ErrDisposed is returned by any operation on a stream that has
	// been closed.
	ErrDisposed = errors.New("stream: use of disposed stream")

	// ErrUnsupported is returned for seeks and length queries a
	// stream cannot honor in its current state.
	ErrUnsupported = errors.New("stream: operation not supported")

	// ErrInvalidState is returned when a caller violates a lifecycle
	// contract, such as rewinding a probe twice.
	ErrInvalidState = errors.New("stream: invalid state")
)

// maxEmptyReads bounds consecutive (0, nil) reads from a source before
// a decorator gives up with io.ErrNoProgress.
const maxEmptyReads = 100

// Committer is implemented by sinks whose writes only become durable
// on Commit. Commit also releases the sink; Close is not called
// afterwards.
type Committer interface {
	Commit() error
}

// Discarder is implemented by sinks that can abandon partial output.
// Discard releases the sink; Close is not called afterwards.
type Discarder interface {
	Discard() error
}
