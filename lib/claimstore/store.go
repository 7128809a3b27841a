// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/claimcheck/lib/clock"
)

// stagingDirectory holds in-flight transactional captures, relative
// to the directory captures are written into.
const stagingDirectory = ".staging"

// Config configures a [Store].
type Config struct {
	// LocalDirectory is the check-in directory captures are written
	// to. Empty means the same as SharedDirectory.
	LocalDirectory string

	// SharedDirectory is the check-out directory captures are redeemed
	// from. Required.
	SharedDirectory string

	// Threshold is the inline threshold in encoded characters. Zero
	// means [DefaultThreshold].
	Threshold int64

	// Compression is the inline codec. The zero value is zstd.
	Compression Compression

	// SkipDigestVerification disables the size and digest check on
	// redeemed payloads.
	SkipDigestVerification bool

	// Clock supplies capture timestamps. Nil means the real clock.
	Clock clock.Clock

	// Logger receives capture and redeem events. Nil discards them.
	Logger *slog.Logger
}

// Store persists and redeems external captures.
type Store struct {
	localDirectory  string
	sharedDirectory string

	// checkIn is true when local and shared differ, so captures go
	// through the two-phase check-in/check-out path.
	checkIn bool

	threshold    int64
	compression  Compression
	verifyDigest bool

	clock  clock.Clock
	logger *slog.Logger
}

// New validates cfg, creates the store directories, and returns a
// ready Store.
func New(cfg Config) (*Store, error) {
	if cfg.SharedDirectory == "" {
		return nil, errors.New("claimstore: shared directory is required")
	}
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("claimstore: threshold must not be negative, got %d", cfg.Threshold)
	}
	if _, err := cfg.Compression.MarshalText(); err != nil {
		return nil, fmt.Errorf("claimstore: %w", err)
	}

	shared, err := filepath.Abs(cfg.SharedDirectory)
	if err != nil {
		return nil, fmt.Errorf("claimstore: resolving shared directory: %w", err)
	}
	local := shared
	if cfg.LocalDirectory != "" {
		local, err = filepath.Abs(cfg.LocalDirectory)
		if err != nil {
			return nil, fmt.Errorf("claimstore: resolving local directory: %w", err)
		}
	}
	for _, directory := range []string{shared, local} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("claimstore: creating %s: %w", directory, err)
		}
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		localDirectory:  local,
		sharedDirectory: shared,
		checkIn:         local != shared,
		threshold:       threshold,
		compression:     cfg.Compression,
		verifyDigest:    !cfg.SkipDigestVerification,
		clock:           clk,
		logger:          logger,
	}, nil
}

// Threshold returns the inline threshold in encoded characters.
func (s *Store) Threshold() int64 { return s.threshold }

// Compression returns the inline codec.
func (s *Store) Compression() Compression { return s.compression }

// SharedDirectory returns the absolute check-out directory.
func (s *Store) SharedDirectory() string { return s.sharedDirectory }

// LocalDirectory returns the absolute check-in directory.
func (s *Store) LocalDirectory() string { return s.localDirectory }

// RequiresRelocation reports whether captures land in a local
// check-in directory and need the relocation job before they can be
// redeemed.
func (s *Store) RequiresRelocation() bool { return s.checkIn }

// NewLocation allocates a fresh capture location.
func (s *Store) NewLocation() (Location, error) {
	return newLocation(s.clock.Now())
}

// TokenFor returns the token a claimed payload at location is
// replaced by: immediate when captures go straight to the shared
// directory, pending transfer otherwise.
func (s *Store) TokenFor(location Location) Token {
	if s.checkIn {
		return Token{Kind: TokenPendingTransfer, Location: location}
	}
	return Token{Kind: TokenImmediate, Location: location}
}

// writePath returns the file a capture at location is written to.
func (s *Store) writePath(location Location, kind CaptureKind) string {
	relative := filepath.FromSlash(string(location))
	if !s.checkIn {
		return filepath.Join(s.sharedDirectory, relative)
	}
	return filepath.Join(s.localDirectory, relative) + kind.checkInExtension()
}

// CheckInPath returns where a capture at location sits until the
// relocation job moves it. Equal to the redeemable path when no
// relocation is needed.
func (s *Store) CheckInPath(location Location, kind CaptureKind) string {
	return s.writePath(location, kind)
}

// Create opens a sink for a capture of the given kind at location.
// With a nil tx the sink writes to its final path and is finalized by
// Close. Otherwise it stages into a temporary file, implements
// [stream.Committer], and enlists a rollback with tx on Commit.
func (s *Store) Create(location Location, kind CaptureKind, tx Transaction) (Sink, error) {
	if _, err := ParseLocation(string(location)); err != nil {
		return nil, fmt.Errorf("claimstore: %w", err)
	}
	if _, err := kind.MarshalText(); err != nil {
		return nil, fmt.Errorf("claimstore: %w", err)
	}

	path := s.writePath(location, kind)
	sink := fileSink{
		store:    s,
		location: location,
		kind:     kind,
		path:     path,
		hasher:   newPayloadHasher(),
	}

	if tx == nil {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("claimstore: creating partition directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return nil, fmt.Errorf("claimstore: creating capture %s: %w", location, err)
		}
		sink.file = file
		sink.target = path
		s.logger.Debug("capture opened", "location", string(location), "kind", kind.String())
		return &sink, nil
	}

	staging := filepath.Join(s.writeRoot(), stagingDirectory)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("claimstore: creating staging directory: %w", err)
	}
	file, err := os.CreateTemp(staging, location.ID()+"-*")
	if err != nil {
		return nil, fmt.Errorf("claimstore: staging capture %s: %w", location, err)
	}
	sink.file = file
	sink.target = file.Name()
	s.logger.Debug("capture staged", "location", string(location), "kind", kind.String())
	return &stagedSink{fileSink: sink, transaction: tx}, nil
}

// Open allocates a new location and opens a sink for it.
func (s *Store) Open(kind CaptureKind, tx Transaction) (Sink, error) {
	location, err := s.NewLocation()
	if err != nil {
		return nil, err
	}
	return s.Create(location, kind, tx)
}

func (s *Store) writeRoot() string {
	if s.checkIn {
		return s.localDirectory
	}
	return s.sharedDirectory
}
