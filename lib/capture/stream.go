// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/claimcheck/lib/claimstore"
	"github.com/bureau-foundation/claimcheck/lib/stream"
)

// State is where a Stream is in its assessment lifecycle.
type State uint8

const (
	// StateUnassessed: no capture decision yet. Reads pass straight
	// through to the source, after which assessment is no longer
	// possible.
	StateUnassessed State = iota

	// StateAssessing: a capture decision is being made. Reads fail.
	StateAssessing

	// StateSetup: the descriptor is fixed and reads flow through the
	// capture chain.
	StateSetup

	// StateCaptured: the source was read to the end and the capture
	// is complete.
	StateCaptured

	// StateFailed: capture setup failed. The state is terminal: reads
	// fail and assessment cannot be restarted, so the owner closes the
	// Stream and retries with a fresh source.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnassessed:
		return "unassessed"
	case StateAssessing:
		return "assessing"
	case StateSetup:
		return "setup"
	case StateCaptured:
		return "captured"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Options configures a Stream. Every field is optional.
type Options struct {
	// ActivityLog receives the descriptor when capture completes.
	ActivityLog ActivityLog

	// ActivityID identifies the tracked activity in ActivityLog.
	ActivityID string

	// Context receives the descriptor on setup and, for claimed
	// bodies, the encoded claim token.
	Context ContextStore

	Logger *slog.Logger
}

// Stream reads a message body while capturing it.
//
// The owner decides how the body is captured, either directly with
// [Stream.InitiateAssessment] and [Stream.CompleteAssessment] or by
// letting [Stream.SetupCapture] apply the threshold policy. From then
// on every byte read through the Stream is the original payload; an
// external capture is written to its sink as a side effect and
// finalized when the source reaches end-of-data. A consumer that has
// no use for the bytes drains them with [Stream.Capture].
//
// Closing the Stream before end-of-data abandons the capture and
// discards partial external output. A Stream is owned by one reader.
type Stream struct {
	source io.ReadCloser
	state  State

	descriptor Descriptor
	replica    *stream.ReplicatingReader
	token      *claimstore.Token
	length     int64

	passthrough bool
	closed      bool
	failure     error

	activityLog ActivityLog
	activityID  string
	context     ContextStore
	logger      *slog.Logger
}

// NewStream wraps source. The Stream owns source and closes it.
func NewStream(source io.ReadCloser, opts Options) *Stream {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stream{
		source:      source,
		activityLog: opts.ActivityLog,
		activityID:  opts.ActivityID,
		context:     opts.Context,
		logger:      logger,
	}
}

// State returns the assessment state.
func (s *Stream) State() State { return s.state }

// Descriptor returns the capture descriptor. ok is false before
// setup.
func (s *Stream) Descriptor() (descriptor Descriptor, ok bool) {
	if s.state < StateSetup || s.state == StateFailed {
		return Descriptor{}, false
	}
	return s.descriptor, true
}

// Token returns the claim token of a claimed body. ok is false when
// the body was not claimed.
func (s *Stream) Token() (token claimstore.Token, ok bool) {
	if s.token == nil {
		return claimstore.Token{}, false
	}
	return *s.token, true
}

// Length returns the payload length once capture has completed.
func (s *Stream) Length() (int64, error) {
	if s.closed {
		return 0, stream.ErrDisposed
	}
	if s.state != StateCaptured {
		return 0, fmt.Errorf("length before capture completed: %w", stream.ErrUnsupported)
	}
	return s.length, nil
}

// InitiateAssessment starts the capture decision. It fails with
// [stream.ErrInvalidState] if a decision was already started or the
// source has already been read from.
func (s *Stream) InitiateAssessment() error {
	if s.closed {
		return stream.ErrDisposed
	}
	if s.state != StateUnassessed {
		return fmt.Errorf("initiating assessment in state %s: %w", s.state, stream.ErrInvalidState)
	}
	if s.passthrough {
		return fmt.Errorf("initiating assessment after reads: %w", stream.ErrInvalidState)
	}
	s.state = StateAssessing
	return nil
}

// CompleteAssessment fixes the capture decision. An external
// descriptor with a sink replicates the payload into it as it is read;
// without a sink the payload is assumed to be stored already. Inline
// descriptors take no sink. Completing an assessment twice fails with
// [stream.ErrInvalidState].
func (s *Stream) CompleteAssessment(descriptor Descriptor, sink io.WriteCloser) error {
	if s.closed {
		return stream.ErrDisposed
	}
	if s.state >= StateSetup {
		return fmt.Errorf("completing assessment in state %s: %w", s.state, stream.ErrInvalidState)
	}
	if s.passthrough {
		return fmt.Errorf("completing assessment after reads: %w", stream.ErrInvalidState)
	}
	if err := descriptor.Validate(); err != nil {
		return fmt.Errorf("completing assessment: %w", err)
	}
	if descriptor.Mode == ModeInline && sink != nil {
		return fmt.Errorf("inline capture with a sink: %w", stream.ErrInvalidState)
	}

	source := s.source
	if sink != nil {
		s.replica = stream.NewReplicatingReader(source, sink)
		source = s.replica
	}
	s.source = stream.NewCompletionReader(source, s.complete)
	s.descriptor = descriptor
	s.state = StateSetup

	if s.context != nil {
		s.context.Write(PropertyDescriptor, ContextNamespace, descriptor)
	}
	s.logger.Info("capture set up",
		"activity_id", s.activityID,
		"mode", descriptor.Mode.String(),
		"location", string(descriptor.Location()),
		"encoded_bytes", len(descriptor.inlineData()),
	)
	return nil
}

// complete runs once, when the capture chain reaches end-of-data. By
// then the replicating reader has already finalized the sink.
func (s *Stream) complete(length int64) error {
	s.state = StateCaptured
	s.length = length
	s.logger.Info("capture completed",
		"activity_id", s.activityID,
		"mode", s.descriptor.Mode.String(),
		"location", string(s.descriptor.Location()),
		"bytes", length,
	)
	if s.activityLog == nil {
		return nil
	}
	if err := s.activityLog.RecordCapture(s.activityID, s.descriptor, length); err != nil {
		return fmt.Errorf("recording capture for activity %s: %w", s.activityID, err)
	}
	return nil
}

// Capture reads the rest of the payload and throws it away, leaving
// the external capture persisted. It fails with
// [stream.ErrInvalidState] unless an external sink was set up.
func (s *Stream) Capture() error {
	if s.closed {
		return stream.ErrDisposed
	}
	if s.replica == nil {
		return fmt.Errorf("capture without an external sink: %w", stream.ErrInvalidState)
	}
	if _, err := io.Copy(io.Discard, s); err != nil {
		return fmt.Errorf("capturing payload: %w", err)
	}
	return nil
}

// Read reads the payload. Before assessment it reads the source
// directly, which rules out assessing later; during assessment it
// fails with [stream.ErrInvalidState].
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, stream.ErrDisposed
	}
	switch s.state {
	case StateUnassessed:
		s.passthrough = true
		return s.source.Read(p)
	case StateAssessing:
		return 0, fmt.Errorf("read during assessment: %w", stream.ErrInvalidState)
	case StateFailed:
		return 0, fmt.Errorf("read after failed capture setup: %w: %w", stream.ErrInvalidState, s.failure)
	default:
		return s.source.Read(p)
	}
}

// Close releases the source and, when capture has not completed, any
// sink. Subsequent calls return nil.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.state == StateSetup {
		s.logger.Warn("capture abandoned before end of payload",
			"activity_id", s.activityID,
			"location", string(s.descriptor.Location()),
		)
	}
	return s.source.Close()
}

// SetupCapture applies the capture policy for modes. Nothing is set up
// when modes does not track the body. A claimed body always goes to
// the store and gets a claim token. Otherwise the payload is probed
// against the store's inline threshold and then rewound: one that
// fits is captured inline, one that does not is captured externally.
// tx, when non-nil, is the transaction external captures join.
//
// A failure after assessment has started leaves the Stream in
// [StateFailed].
func (s *Stream) SetupCapture(store *claimstore.Store, modes TrackingModes, tx claimstore.Transaction) error {
	if !modes.RequiresCapture() {
		return nil
	}
	if err := s.InitiateAssessment(); err != nil {
		return err
	}
	if err := s.setup(store, modes, tx); err != nil {
		s.state = StateFailed
		s.failure = err
		s.logger.Warn("capture setup failed",
			"activity_id", s.activityID,
			"error", err,
		)
		return err
	}
	return nil
}

func (s *Stream) setup(store *claimstore.Store, modes TrackingModes, tx claimstore.Transaction) error {
	if modes.RequiresClaim() {
		return s.setupExternal(store, claimstore.KindClaimed, tx)
	}

	probe := stream.NewRewinder(s.source)
	s.source = probe
	assessment, err := store.Assess(probe)
	if err != nil {
		return fmt.Errorf("assessing payload: %w", err)
	}
	rewound, err := probe.Rewind()
	if err != nil {
		return err
	}
	s.source = rewound
	s.logger.Debug("payload assessed",
		"activity_id", s.activityID,
		"fits_inline", assessment.Fits,
		"probed_bytes", probe.Consumed(),
	)

	if assessment.Fits {
		return s.CompleteAssessment(Inline(assessment.Encoded, store.Compression()), nil)
	}
	return s.setupExternal(store, claimstore.KindTracked, tx)
}

func (s *Stream) setupExternal(store *claimstore.Store, kind claimstore.CaptureKind, tx claimstore.Transaction) error {
	sink, err := store.Open(kind, tx)
	if err != nil {
		return fmt.Errorf("opening capture sink: %w", err)
	}
	location := sink.Location()
	if err := s.CompleteAssessment(External(location), sink); err != nil {
		return errors.Join(err, sink.Discard())
	}
	if kind != claimstore.KindClaimed {
		return nil
	}

	token := store.TokenFor(location)
	s.token = &token
	if s.context == nil {
		return nil
	}
	encoded, err := claimstore.MarshalToken(token)
	if err != nil {
		return fmt.Errorf("encoding claim token: %w", err)
	}
	s.context.Write(PropertyToken, ContextNamespace, encoded)
	return nil
}
