// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"io"
)

// CompletionFunc is called once, with the total number of bytes the
// source produced, when a CompletionReader observes end-of-data. A
// non-nil error is returned from the Read that triggered it.
type CompletionFunc func(length int64) error

// CompletionReader guarantees its completion callback fires exactly
// once, at the true end of the source, however the caller sizes its
// reads.
//
// Some consumers stop as soon as a Read returns fewer bytes than they
// asked for; others keep going until io.EOF. CompletionReader serves
// both by never returning a short read before end-of-data: each Read
// loops on the source until the buffer is full or the source returns
// io.EOF. That internal io.EOF is the only end-of-data signal it
// trusts, and it may arrive in the middle of a caller's Read. The
// callback fires there, so a consumer that never issues a Read
// returning io.EOF itself still completes the capture.
type CompletionReader struct {
	source     io.ReadCloser
	onComplete CompletionFunc

	position  int64
	length    int64
	exhausted bool
	fired     bool
	closed    bool
}

// NewCompletionReader wraps source. onComplete may be nil.
func NewCompletionReader(source io.ReadCloser, onComplete CompletionFunc) *CompletionReader {
	return &CompletionReader{source: source, onComplete: onComplete}
}

// Read fills p from the source. It returns fewer than len(p) bytes
// only when end-of-data was reached during this call or the source
// failed; the first source error aborts the call.
func (r *CompletionReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if r.exhausted {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	emptyReads := 0
	for total < len(p) {
		n, err := r.source.Read(p[total:])
		total += n
		r.position += int64(n)
		if err == io.EOF {
			r.exhausted = true
			if completeErr := r.complete(); completeErr != nil {
				return total, completeErr
			}
			if total == 0 {
				return 0, io.EOF
			}
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			emptyReads++
			if emptyReads >= maxEmptyReads {
				return total, io.ErrNoProgress
			}
		} else {
			emptyReads = 0
		}
	}
	return total, nil
}

func (r *CompletionReader) complete() error {
	if r.fired {
		return nil
	}
	r.fired = true
	r.length = r.position
	callback := r.onComplete
	r.onComplete = nil
	if callback == nil {
		return nil
	}
	if err := callback(r.length); err != nil {
		return fmt.Errorf("completing stream: %w", err)
	}
	return nil
}

// Completed reports whether the completion callback has fired.
func (r *CompletionReader) Completed() bool { return r.fired }

// Length returns the total number of bytes in the source. It is only
// known after completion; before that it fails with ErrUnsupported.
func (r *CompletionReader) Length() (int64, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if !r.fired {
		return 0, fmt.Errorf("length before end of stream: %w", ErrUnsupported)
	}
	return r.length, nil
}

// Seek fails with ErrUnsupported before completion. Afterwards it is
// forwarded to the source when the source is an io.Seeker. Reading a
// rewound stream never fires the callback again.
func (r *CompletionReader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if !r.fired {
		return 0, fmt.Errorf("seek before end of stream: %w", ErrUnsupported)
	}
	seeker, ok := r.source.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("source is not seekable: %w", ErrUnsupported)
	}
	position, err := seeker.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	r.position = position
	r.exhausted = false
	return position, nil
}

// Close closes the source. If the source was not exhausted the
// callback never fires. Subsequent calls return nil.
func (r *CompletionReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.onComplete = nil
	return r.source.Close()
}
