// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// ChunkedReader serves data in short reads. Each Read returns at most
// the next size from Pattern (cycling), and never more than the
// caller's buffer. When Trailing is true the final bytes are returned
// together with io.EOF instead of on a separate (0, io.EOF) call.
//
// ChunkedReader also implements io.Seeker for position zero only, so
// it can stand in for a rewindable source.
type ChunkedReader struct {
	Data     []byte
	Pattern  []int
	Trailing bool

	offset int
	step   int

	// Reads counts every call to Read, including the ones that
	// return io.EOF.
	Reads int
}

// NewChunkedReader returns a reader over data that serves reads in
// the given size pattern. An empty pattern serves whatever fits.
func NewChunkedReader(data []byte, pattern ...int) *ChunkedReader {
	return &ChunkedReader{Data: data, Pattern: pattern}
}

func (r *ChunkedReader) Read(p []byte) (int, error) {
	r.Reads++
	if r.offset >= len(r.Data) {
		return 0, io.EOF
	}
	size := len(p)
	if len(r.Pattern) > 0 {
		limit := r.Pattern[r.step%len(r.Pattern)]
		r.step++
		if limit < size {
			size = limit
		}
	}
	if remaining := len(r.Data) - r.offset; size > remaining {
		size = remaining
	}
	n := copy(p[:size], r.Data[r.offset:])
	r.offset += n
	if r.Trailing && r.offset >= len(r.Data) {
		return n, io.EOF
	}
	return n, nil
}

// Seek supports only Seek(0, io.SeekStart).
func (r *ChunkedReader) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekStart {
		return 0, errors.New("testutil: ChunkedReader only seeks to zero")
	}
	r.offset = 0
	r.step = 0
	return 0, nil
}

// ReadAllChunked drains r using a buffer of the given size and
// returns everything read. Fails the test on any error other than
// io.EOF.
func ReadAllChunked(t testing.TB, r io.Reader, size int) []byte {
	t.Helper()
	var output bytes.Buffer
	buffer := make([]byte, size)
	for {
		n, err := r.Read(buffer)
		output.Write(buffer[:n])
		if errors.Is(err, io.EOF) {
			return output.Bytes()
		}
		if err != nil {
			t.Fatalf("reading with %d-byte buffer: %v", size, err)
		}
	}
}

// RequireErrorIs fails the test unless errors.Is(err, target).
func RequireErrorIs(t testing.TB, err, target error, msgAndArgs ...any) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v: %s", err, target, formatMessage(msgAndArgs))
	}
}
