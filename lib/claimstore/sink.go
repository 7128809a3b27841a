// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/claimcheck/lib/stream"
)

// Sink is the write side of an external capture. Close finalizes a
// plain sink; Discard abandons it and removes partial output. Sinks
// created under a [Transaction] also implement [stream.Committer] and
// only become visible on Commit; closing them uncommitted discards.
type Sink interface {
	io.WriteCloser
	stream.Discarder

	// Location is where the payload will be redeemable from.
	Location() Location
}

// Transaction is an ambient transaction a capture can join. A
// committed capture enlists a rollback that removes it again if the
// transaction aborts.
type Transaction interface {
	Enlist(rollback func() error)
}

// fileSink writes a capture directly to its final path.
type fileSink struct {
	store    *Store
	location Location
	kind     CaptureKind

	// path is the final payload path. target is the file being
	// written, which is path itself for plain sinks.
	path   string
	target string

	file   *os.File
	hasher *blake3.Hasher
	size   int64
	done   bool
}

func (s *fileSink) Location() Location { return s.location }

func (s *fileSink) Write(p []byte) (int, error) {
	if s.done {
		return 0, stream.ErrDisposed
	}
	n, err := s.file.Write(p)
	if n > 0 {
		s.hasher.Write(p[:n])
		s.size += int64(n)
	}
	if err != nil {
		return n, fmt.Errorf("writing capture %s: %w", s.location, err)
	}
	return n, nil
}

// Close finalizes the capture and writes its digest sidecar.
func (s *fileSink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing capture %s: %w", s.location, err)
	}
	return s.seal()
}

// Discard closes and removes the partial capture.
func (s *fileSink) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	closeErr := s.file.Close()
	removeErr := os.Remove(s.target)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	s.store.logger.Warn("capture discarded before completion",
		"location", string(s.location),
		"kind", s.kind.String(),
		"bytes", s.size,
	)
	return errors.Join(closeErr, removeErr)
}

// seal writes the digest sidecar for the finalized payload at s.path.
func (s *fileSink) seal() error {
	record := DigestRecord{
		Version:    DigestRecordVersion,
		Kind:       s.kind,
		Size:       s.size,
		Digest:     s.hasher.Sum(nil),
		CapturedAt: s.store.clock.Now().UnixMilli(),
	}
	if err := writeDigest(s.path, record); err != nil {
		return fmt.Errorf("sealing capture %s: %w", s.location, err)
	}
	s.store.logger.Info("capture persisted",
		"location", string(s.location),
		"kind", s.kind.String(),
		"bytes", s.size,
		"path", s.path,
	)
	return nil
}

// stagedSink writes into the staging directory and renames into
// place on Commit.
type stagedSink struct {
	fileSink
	transaction Transaction
}

// Commit moves the staged payload to its final path, writes the
// digest sidecar, and enlists a rollback with the transaction.
func (s *stagedSink) Commit() error {
	if s.done {
		return fmt.Errorf("committing capture %s: %w", s.location, stream.ErrDisposed)
	}
	s.done = true

	success := false
	defer func() {
		if !success {
			os.Remove(s.target)
		}
	}()

	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("syncing capture %s: %w", s.location, err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing capture %s: %w", s.location, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating partition directory: %w", err)
	}
	if err := os.Rename(s.target, s.path); err != nil {
		return fmt.Errorf("committing capture %s: %w", s.location, err)
	}
	success = true

	if err := s.seal(); err != nil {
		return errors.Join(err, removeIfExists(s.path))
	}

	path := s.path
	s.transaction.Enlist(func() error {
		return errors.Join(
			removeIfExists(path),
			removeIfExists(path+digestSuffix),
		)
	})
	return nil
}

// Close without Commit abandons the capture.
func (s *stagedSink) Close() error {
	return s.Discard()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
