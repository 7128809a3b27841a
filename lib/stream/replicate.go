// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
)

// ReplicatingReader copies every byte read from its source into a
// sink before returning it to the caller. The first io.EOF from the
// source finalizes the sink: Commit when the sink is a [Committer],
// Close otherwise. The sink reference is dropped at that point, so a
// second finalization cannot happen however many reads follow.
//
// Closing before end-of-data abandons the sink (Discard when it is a
// [Discarder], Close otherwise) and closes the source; the sink is
// never committed in that case.
//
// A failed sink write or finalization abandons the sink as well. The
// failure is then returned from every later Read in place of io.EOF,
// so a consumer never mistakes a broken replica for end-of-data.
type ReplicatingReader struct {
	source io.ReadCloser
	sink   io.WriteCloser

	length    int64
	exhausted bool
	finalized bool
	closed    bool
	failure   error
}

// NewReplicatingReader returns a reader that owns both source and sink.
func NewReplicatingReader(source io.ReadCloser, sink io.WriteCloser) *ReplicatingReader {
	return &ReplicatingReader{source: source, sink: sink}
}

// Read reads from the source and writes what it got to the sink. A
// sink failure is returned alongside the bytes that were read, and
// again from every later Read.
func (r *ReplicatingReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if r.failure != nil {
		return 0, r.failure
	}

	n, err := r.source.Read(p)
	if n > 0 && !r.exhausted {
		r.length += int64(n)
		if r.sink != nil {
			if _, writeErr := r.sink.Write(p[:n]); writeErr != nil {
				return n, r.fail(fmt.Errorf("replicating %d bytes: %w", n, writeErr))
			}
		}
	}
	if err == io.EOF && !r.exhausted {
		if finalizeErr := r.finalize(); finalizeErr != nil {
			return n, r.fail(finalizeErr)
		}
		r.exhausted = true
	}
	return n, err
}

// fail abandons the sink and records err as the result of every later
// Read.
func (r *ReplicatingReader) fail(err error) error {
	if abandonErr := r.abandon(); abandonErr != nil {
		err = errors.Join(err, abandonErr)
	}
	r.failure = err
	return err
}

func (r *ReplicatingReader) finalize() error {
	sink := r.sink
	if sink == nil {
		return nil
	}
	if committer, ok := sink.(Committer); ok {
		// A failed Commit leaves the sink for abandon to discard.
		if err := committer.Commit(); err != nil {
			return fmt.Errorf("committing replica: %w", err)
		}
		r.sink = nil
		r.finalized = true
		return nil
	}
	r.sink = nil
	if err := sink.Close(); err != nil {
		return fmt.Errorf("closing replica: %w", err)
	}
	r.finalized = true
	return nil
}

// abandon discards the sink, or closes it when it cannot discard, and
// drops the reference.
func (r *ReplicatingReader) abandon() error {
	sink := r.sink
	if sink == nil {
		return nil
	}
	r.sink = nil
	if discarder, ok := sink.(Discarder); ok {
		if err := discarder.Discard(); err != nil {
			return fmt.Errorf("discarding replica: %w", err)
		}
		return nil
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("closing replica: %w", err)
	}
	return nil
}

// Finalized reports whether the sink has been committed or closed at
// end-of-data.
func (r *ReplicatingReader) Finalized() bool { return r.finalized }

// Length returns the number of bytes replicated. It fails with
// ErrUnsupported until the source is exhausted. Reads after a seek are
// not counted.
func (r *ReplicatingReader) Length() (int64, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if !r.exhausted {
		return 0, fmt.Errorf("length before end of stream: %w", ErrUnsupported)
	}
	return r.length, nil
}

// Seek fails with ErrUnsupported until the source is exhausted, and
// afterwards unless the source is an io.Seeker. Bytes read after a
// seek are not replicated.
func (r *ReplicatingReader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if !r.exhausted {
		return 0, fmt.Errorf("seek before end of stream: %w", ErrUnsupported)
	}
	seeker, ok := r.source.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("source is not seekable: %w", ErrUnsupported)
	}
	return seeker.Seek(offset, whence)
}

// Close releases the source and, if it was not finalized, abandons
// the sink. Subsequent calls return nil.
func (r *ReplicatingReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.abandon(); err != nil {
		errs = append(errs, err)
	}
	if err := r.source.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
