// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bytecopy

import (
	"errors"
	"io"
)

// maxEmptyPulls bounds the number of consecutive empty, error-free
// blocks a pull function may return before Fill gives up with
// io.ErrNoProgress. Matches the bufio limit for empty reads.
const maxEmptyPulls = 100

// PullFunc yields the producer's next block. It returns io.EOF (with
// a nil or empty block) once the producer is exhausted. A block may
// be any size, including larger than the destination being filled.
//
// The returned slice is owned by the caller until the next call: Fill
// may retain part of it in the backlog, so producers must not reuse
// the backing array for the following block.
type PullFunc func() ([]byte, error)

// Copy writes as much of block as fits into dest and returns the
// number of bytes written together with the unwritten remainder. It
// never writes past len(dest). The remainder aliases block.
func Copy(dest, block []byte) (written int, leftover []byte) {
	written = copy(dest, block)
	if written == len(block) {
		return written, nil
	}
	return written, block[written:]
}

// Backlog holds bytes a producer has yielded but no caller has yet
// consumed. The zero value is an empty backlog ready for use.
//
// Backlog is not safe for concurrent use.
type Backlog struct {
	pending []byte
}

// Pending returns the number of bytes retained for the next Fill.
func (b *Backlog) Pending() int { return len(b.pending) }

// Reset discards any retained bytes.
func (b *Backlog) Reset() { b.pending = nil }

// Fill writes into dest, first draining the backlog and then pulling
// further blocks until dest is full or pull reports end-of-data. When
// a pulled block is larger than the remaining space, the overflow is
// retained in the backlog rather than copied.
//
// Fill returns io.EOF only when it wrote nothing and both the backlog
// and the producer are exhausted. Any other pull error is returned
// together with the bytes already written; the failed block is not
// retained.
func (b *Backlog) Fill(dest []byte, pull PullFunc) (int, error) {
	total := 0
	if len(b.pending) > 0 {
		written, leftover := Copy(dest, b.pending)
		b.pending = leftover
		total += written
	}

	emptyPulls := 0
	for total < len(dest) {
		block, err := pull()
		if len(block) > 0 {
			emptyPulls = 0
			written, leftover := Copy(dest[total:], block)
			total += written
			b.pending = leftover
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if total == 0 && len(b.pending) == 0 {
					return 0, io.EOF
				}
				return total, nil
			}
			return total, err
		}
		if len(block) == 0 {
			emptyPulls++
			if emptyPulls >= maxEmptyPulls {
				return total, io.ErrNoProgress
			}
		}
	}
	return total, nil
}

// chunkReader adapts a PullFunc into an io.Reader.
type chunkReader struct {
	pull    PullFunc
	backlog Backlog
	done    bool
}

// NewChunkReader returns an io.Reader that serves the blocks yielded
// by pull in whatever sizes the caller asks for. After pull reports
// io.EOF and the backlog is drained, every Read returns (0, io.EOF)
// without calling pull again.
func NewChunkReader(pull PullFunc) io.Reader {
	return &chunkReader{pull: pull}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.done {
		if r.backlog.Pending() == 0 {
			return 0, io.EOF
		}
		written, err := r.backlog.Fill(p, exhausted)
		return written, err
	}
	written, err := r.backlog.Fill(p, func() ([]byte, error) {
		block, err := r.pull()
		if errors.Is(err, io.EOF) {
			r.done = true
		}
		return block, err
	})
	return written, err
}

func exhausted() ([]byte, error) { return nil, io.EOF }
