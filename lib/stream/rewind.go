// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"fmt"
	"io"
)

// Rewinder lets a caller probe a stream before deciding how to
// consume it, then rewind to where probing started, exactly once.
//
// When the source is seekable, Rewind seeks it back. Otherwise every
// byte read through the Rewinder is recorded and replayed ahead of
// the unread remainder of the source. Probes that stop early (for
// instance on overflowing a size threshold) therefore only hold what
// they actually consumed.
type Rewinder struct {
	source   io.ReadCloser
	seeker   io.Seeker
	start    int64
	recorded bytes.Buffer
	consumed int64
	rewound  bool
	closed   bool
}

// NewRewinder wraps source. The source's current position is the
// position Rewind returns to.
func NewRewinder(source io.ReadCloser) *Rewinder {
	r := &Rewinder{source: source}
	if seeker, ok := source.(io.Seeker); ok {
		// Pipes and terminals implement Seek but fail it.
		if start, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			r.seeker = seeker
			r.start = start
		}
	}
	return r
}

// Read reads from the source. It fails with ErrInvalidState once the
// Rewinder has been rewound.
func (r *Rewinder) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if r.rewound {
		return 0, fmt.Errorf("read from rewound probe: %w", ErrInvalidState)
	}
	n, err := r.source.Read(p)
	r.consumed += int64(n)
	if r.seeker == nil && n > 0 {
		r.recorded.Write(p[:n])
	}
	return n, err
}

// Consumed returns the number of bytes read while probing.
func (r *Rewinder) Consumed() int64 { return r.consumed }

// Rewind returns a reader positioned where probing began. Ownership
// of the source passes to the returned reader; the Rewinder itself
// can no longer be read. A second call fails with ErrInvalidState.
func (r *Rewinder) Rewind() (io.ReadCloser, error) {
	if r.closed {
		return nil, ErrDisposed
	}
	if r.rewound {
		return nil, fmt.Errorf("probe already rewound: %w", ErrInvalidState)
	}

	if r.seeker != nil {
		if _, err := r.seeker.Seek(r.start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding probe source: %w", err)
		}
		r.rewound = true
		return r.source, nil
	}
	r.rewound = true
	if r.consumed == 0 {
		return r.source, nil
	}
	replay := r.recorded.Bytes()
	r.recorded = bytes.Buffer{}
	return &replayReader{replay: bytes.NewReader(replay), source: r.source}, nil
}

// Close closes the source unless it has been handed off by Rewind.
func (r *Rewinder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.rewound {
		return nil
	}
	return r.source.Close()
}

// replayReader serves recorded probe bytes and then the rest of the
// source. It does not implement io.Seeker: bytes past the
// recording are not kept.
type replayReader struct {
	replay *bytes.Reader
	source io.ReadCloser
	closed bool
}

func (r *replayReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrDisposed
	}
	if r.replay.Len() > 0 {
		return r.replay.Read(p)
	}
	return r.source.Read(p)
}

func (r *replayReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.source.Close()
}
