// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/claimcheck/lib/stream"
)

// Resolve maps a location to a filesystem path. A file URL or an
// absolute path is used as is. Anything else is a path relative to the
// shared directory and may not escape it.
func (s *Store) Resolve(location string) (string, error) {
	if location == "" {
		return "", errors.New("claimstore: empty location")
	}

	if strings.HasPrefix(location, "file://") {
		parsed, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("claimstore: parsing location %q: %w", location, err)
		}
		if parsed.Host != "" && parsed.Host != "localhost" {
			return "", fmt.Errorf("claimstore: location %q names a remote host", location)
		}
		return filepath.FromSlash(parsed.Path), nil
	}

	if filepath.IsAbs(location) {
		return filepath.Clean(location), nil
	}

	cleaned := path.Clean(filepath.ToSlash(location))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, "/") {
		return "", fmt.Errorf("claimstore: location %q escapes the shared directory", location)
	}
	return filepath.Join(s.sharedDirectory, filepath.FromSlash(cleaned)), nil
}

// Redeem opens the payload at location for reading. A location that
// does not resolve to an existing file fails with [ErrNotFound]. When
// the payload has a digest sidecar and verification is enabled, the
// returned reader fails with [ErrDigestMismatch] at end-of-data if the
// content does not match it.
func (s *Store) Redeem(location string) (io.ReadCloser, error) {
	resolved, err := s.Resolve(location)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("claimstore: opening %s: %w", location, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("claimstore: stat %s: %w", location, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, location)
	}

	s.logger.Debug("redeeming payload", "location", location, "path", resolved)

	if !s.verifyDigest {
		return file, nil
	}
	record, err := ReadDigest(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		// Payloads written by other producers carry no sidecar.
		return file, nil
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("claimstore: %w", err)
	}
	return &verifyingReader{
		file:     file,
		path:     resolved,
		hasher:   newPayloadHasher(),
		expected: record,
	}, nil
}

// RedeemToken opens the payload a token stands for. Pending tokens
// fail with [stream.ErrInvalidState]: whether relocation has finished
// is for the caller to establish, after which it redeems the
// [Token.Transferred] form.
func (s *Store) RedeemToken(token Token) (io.ReadCloser, error) {
	if err := token.Validate(); err != nil {
		return nil, fmt.Errorf("claimstore: %w", err)
	}
	if !token.Redeemable() {
		return nil, fmt.Errorf("claimstore: redeeming %s token for %s: %w",
			token.Kind, token.Location, stream.ErrInvalidState)
	}
	return s.Redeem(string(token.Location))
}
