// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/claimcheck/lib/bytecopy"
)

// AggregateNamespace is the XML namespace of the aggregation wrapper.
// Downstream maps match on it, so it is a wire constant.
const AggregateNamespace = "http://schemas.microsoft.com/BizTalk/2003/aggschema"

const (
	rootOpenTag  = `<agg:Root xmlns:agg="` + AggregateNamespace + `">`
	rootCloseTag = `</agg:Root>`
)

func partOpenTag(index int) []byte {
	return fmt.Appendf(nil, "<agg:InputMessagePart_%d>", index)
}

func partCloseTag(index int) []byte {
	return fmt.Appendf(nil, "</agg:InputMessagePart_%d>", index)
}

// aggregateState is the position of an Aggregator in its output.
type aggregateState uint8

const (
	stateRootOpen aggregateState = iota
	statePartOpen
	statePartContent
	statePartClose
	stateRootClose
	stateDone
)

func (s aggregateState) String() string {
	switch s {
	case stateRootOpen:
		return "root-open"
	case statePartOpen:
		return "part-open"
	case statePartContent:
		return "part-content"
	case statePartClose:
		return "part-close"
	case stateRootClose:
		return "root-close"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Aggregator concatenates sub-streams into a single wrapper document:
//
//	<agg:Root xmlns:agg="...">
//	  <agg:InputMessagePart_0>part 0 bytes</agg:InputMessagePart_0>
//	  ...
//	</agg:Root>
//
// (without the whitespace). Parts are read lazily, in order, and must
// already be in the wrapper's text encoding without their own XML
// declaration. Delimiters that do not fit the caller's buffer are
// carried over to the next Read.
type Aggregator struct {
	parts    []io.ReadCloser
	state    aggregateState
	part     int
	backlog  bytecopy.Backlog
	position int64
	closed   bool
	failure  error
}

// NewAggregator returns an Aggregator that owns parts. Closing the
// Aggregator closes every part.
func NewAggregator(parts ...io.ReadCloser) *Aggregator {
	return &Aggregator{parts: parts}
}

// Read implements io.Reader.
func (a *Aggregator) Read(p []byte) (int, error) {
	if a.closed {
		return 0, ErrDisposed
	}
	if a.failure != nil {
		return 0, a.failure
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	emptyReads := 0
	for total < len(p) {
		if a.backlog.Pending() > 0 {
			written, _ := a.backlog.Fill(p[total:], drained)
			total += written
			continue
		}
		if a.state == stateDone {
			break
		}
		written, err := a.step(p[total:])
		total += written
		if err != nil {
			a.position += int64(total)
			return total, err
		}
		if written == 0 && a.state == statePartContent {
			emptyReads++
			if emptyReads >= maxEmptyReads {
				a.position += int64(total)
				return total, io.ErrNoProgress
			}
		} else {
			emptyReads = 0
		}
	}

	a.position += int64(total)
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// step performs one transition of the state machine, writing the
// bytes that transition produces into dest.
func (a *Aggregator) step(dest []byte) (int, error) {
	switch a.state {
	case stateRootOpen:
		a.part = 0
		if len(a.parts) == 0 {
			a.state = stateRootClose
		} else {
			a.state = statePartOpen
		}
		return a.emit(dest, []byte(rootOpenTag))

	case statePartOpen:
		a.state = statePartContent
		return a.emit(dest, partOpenTag(a.part))

	case statePartContent:
		written, err := a.parts[a.part].Read(dest)
		if err == io.EOF {
			a.state = statePartClose
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("reading aggregate part %d: %w", a.part, err)
		}
		return written, nil

	case statePartClose:
		tag := partCloseTag(a.part)
		a.part++
		if a.part < len(a.parts) {
			a.state = statePartOpen
		} else {
			a.state = stateRootClose
		}
		return a.emit(dest, tag)

	case stateRootClose:
		a.state = stateDone
		return a.emit(dest, []byte(rootCloseTag))

	case stateDone:
		return 0, nil

	default:
		panic(fmt.Sprintf("stream: aggregator in %s state", a.state))
	}
}

// emit writes as much of delimiter as fits and keeps the rest in the
// backlog.
func (a *Aggregator) emit(dest, delimiter []byte) (int, error) {
	yielded := false
	return a.backlog.Fill(dest, func() ([]byte, error) {
		if yielded {
			return nil, io.EOF
		}
		yielded = true
		return delimiter, nil
	})
}

// Seek supports Seek(0, io.SeekStart), which rewinds every part to
// its own position zero and restarts the output, and Seek(0,
// io.SeekCurrent), which reports the current position. Rewinding
// requires every part to be an io.Seeker; nothing is rewound when one
// is not. A part that fails to rewind leaves the output unusable:
// later Reads return that failure.
func (a *Aggregator) Seek(offset int64, whence int) (int64, error) {
	if a.closed {
		return 0, ErrDisposed
	}
	if offset != 0 {
		return 0, fmt.Errorf("aggregator seek to %d: %w", offset, ErrUnsupported)
	}
	switch whence {
	case io.SeekCurrent:
		return a.position, nil
	case io.SeekStart:
	default:
		return 0, fmt.Errorf("aggregator seek whence %d: %w", whence, ErrUnsupported)
	}

	seekers := make([]io.Seeker, len(a.parts))
	for index, part := range a.parts {
		seeker, ok := part.(io.Seeker)
		if !ok {
			return 0, fmt.Errorf("aggregate part %d is not seekable: %w", index, ErrUnsupported)
		}
		seekers[index] = seeker
	}
	for index, seeker := range seekers {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			a.failure = fmt.Errorf("rewinding aggregate part %d: %w", index, err)
			return 0, a.failure
		}
	}
	a.state = stateRootOpen
	a.part = 0
	a.backlog.Reset()
	a.position = 0
	return 0, nil
}

// Close closes every part. Subsequent calls return nil.
func (a *Aggregator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.backlog.Reset()

	var errs []error
	for index, part := range a.parts {
		if err := part.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing aggregate part %d: %w", index, err))
		}
	}
	a.parts = nil
	return errors.Join(errs...)
}

func drained() ([]byte, error) { return nil, io.EOF }
