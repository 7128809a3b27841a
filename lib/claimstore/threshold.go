// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"bytes"
	"fmt"
	"io"
)

const (
	// InlineRecordCeiling is the largest inline record, in bytes, the
	// downstream tracking store accepts for a captured body.
	InlineRecordCeiling = 512 * 1024

	// bytesPerCharacter is the width of one character in the unit the
	// ceiling is measured in (UTF-16 code units).
	bytesPerCharacter = 2

	// DefaultThreshold is the largest inline text form, in encoded
	// characters, that fits the ceiling. Base64 turns every 3
	// compressed bytes into 4 characters, so this admits
	// DefaultThreshold/4*3 compressed bytes however well the payload
	// compresses.
	DefaultThreshold = InlineRecordCeiling / bytesPerCharacter
)

// CompressedBudget returns the largest compressed size whose inline
// text form fits within threshold encoded characters.
func CompressedBudget(threshold int64) int64 {
	return threshold / 4 * 3
}

// Assessment is the result of measuring a payload against the inline
// threshold.
type Assessment struct {
	// Fits is true when the whole payload encoded to at most the
	// threshold.
	Fits bool

	// Encoded is the inline text form. Empty unless Fits.
	Encoded string
}

// Assess encodes r into memory until either r is exhausted or the
// encoded form exceeds the threshold. In the second case it stops
// reading immediately and discards what it encoded, so an oversized
// payload costs at most threshold bytes of memory.
//
// Assess consumes r. Callers that still need the payload probe
// through a [stream.Rewinder].
func (s *Store) Assess(r io.Reader) (Assessment, error) {
	return assess(r, s.compression, s.threshold)
}

func assess(r io.Reader, compression Compression, threshold int64) (Assessment, error) {
	encoder, err := NewEncodingReader(r, compression)
	if err != nil {
		return Assessment{}, err
	}
	buffer := &thresholdBuffer{limit: threshold}
	if _, err := io.Copy(buffer, encoder); err != nil {
		if isThresholdExceeded(err) {
			return Assessment{Fits: false}, nil
		}
		return Assessment{}, fmt.Errorf("assessing payload: %w", err)
	}
	return Assessment{Fits: true, Encoded: buffer.data.String()}, nil
}

// thresholdBuffer accumulates writes up to limit bytes and fails the
// write that would cross it.
type thresholdBuffer struct {
	data  bytes.Buffer
	limit int64
}

func (b *thresholdBuffer) Write(p []byte) (int, error) {
	if int64(b.data.Len())+int64(len(p)) > b.limit {
		return 0, errThresholdExceeded
	}
	return b.data.Write(p)
}
