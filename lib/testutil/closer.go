// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// CloseCounter wraps a reader and counts Close calls. Reads after the
// first Close fail so use-after-release shows up in tests.
type CloseCounter struct {
	io.Reader
	Closes int
}

// NewCloseCounter wraps r.
func NewCloseCounter(r io.Reader) *CloseCounter {
	return &CloseCounter{Reader: r}
}

func (c *CloseCounter) Read(p []byte) (int, error) {
	if c.Closes > 0 {
		return 0, errors.New("testutil: read after close")
	}
	return c.Reader.Read(p)
}

// Seek forwards to the wrapped reader when it is an io.Seeker.
func (c *CloseCounter) Seek(offset int64, whence int) (int64, error) {
	seeker, ok := c.Reader.(io.Seeker)
	if !ok {
		return 0, errors.New("testutil: wrapped reader is not seekable")
	}
	return seeker.Seek(offset, whence)
}

func (c *CloseCounter) Close() error {
	c.Closes++
	return nil
}

// SinkRecorder is an in-memory sink that records every byte written
// and counts finalization calls. It has no Commit method; use
// [CommitRecorder] for a transactional sink.
type SinkRecorder struct {
	bytes.Buffer

	Closes   int
	Commits  int
	Discards int

	// WriteErr, when set, is returned from every Write.
	WriteErr error
}

func (s *SinkRecorder) Write(p []byte) (int, error) {
	if s.WriteErr != nil {
		return 0, s.WriteErr
	}
	if s.Finalized() {
		return 0, errors.New("testutil: write after finalization")
	}
	return s.Buffer.Write(p)
}

func (s *SinkRecorder) Close() error {
	s.Closes++
	return nil
}

// CommitRecorder is a [SinkRecorder] that also supports Commit.
type CommitRecorder struct {
	SinkRecorder
}

// Commit records a transactional commit.
func (s *CommitRecorder) Commit() error {
	if s.Finalized() {
		return errors.New("testutil: commit after finalization")
	}
	s.Commits++
	return nil
}

// Discard records an abandoned capture.
func (s *SinkRecorder) Discard() error {
	s.Discards++
	return nil
}

// Finalized reports whether any finalization method has been called.
func (s *SinkRecorder) Finalized() bool {
	return s.Closes+s.Commits+s.Discards > 0
}

// formatMessage formats optional message arguments into a string.
// Accepts either a single string or a format string followed by args.
func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if len(msgAndArgs) == 1 {
		if s, ok := msgAndArgs[0].(string); ok {
			return s
		}
		return fmt.Sprintf("%v", msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%v", msgAndArgs)
}
