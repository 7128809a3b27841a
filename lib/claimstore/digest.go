// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/claimcheck/lib/codec"
)

// digestSuffix is appended to a payload's filename to name its
// digest sidecar.
const digestSuffix = ".b3"

// DigestRecordVersion is the current sidecar format version.
const DigestRecordVersion = 1

// payloadDomainKey is the BLAKE3 key for payload digests. Keyed mode
// keeps these digests distinct from any other BLAKE3 use over the
// same bytes. ASCII of the domain name, zero-padded to 32 bytes.
var payloadDomainKey = [32]byte{
	'b', 'u', 'r', 'e', 'a', 'u', '.', 'c', 'l', 'a', 'i', 'm', 'c', 'h', 'e', 'c',
	'k', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0,
}

// DigestRecord is the sidecar written next to every finalized
// capture.
type DigestRecord struct {
	Version    int         `cbor:"version"`
	Kind       CaptureKind `cbor:"kind"`
	Size       int64       `cbor:"size"`
	Digest     []byte      `cbor:"digest"`
	CapturedAt int64       `cbor:"captured_at"` // Unix milliseconds
}

func newPayloadHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		// Only fails for keys that are not 32 bytes.
		panic("claimstore: blake3 keyed hasher: " + err.Error())
	}
	return hasher
}

// HashPayload returns the payload digest of data, as recorded in
// digest sidecars.
func HashPayload(data []byte) []byte {
	hasher := newPayloadHasher()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// writeDigest writes the sidecar for the payload at payloadPath via
// a temp file and atomic rename.
func writeDigest(payloadPath string, record DigestRecord) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling digest record: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(payloadPath), ".digest-*")
	if err != nil {
		return fmt.Errorf("creating temp digest file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing digest record: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing digest record: %w", err)
	}
	if err := os.Rename(tmpPath, payloadPath+digestSuffix); err != nil {
		return fmt.Errorf("renaming digest record: %w", err)
	}
	success = true
	return nil
}

// ReadDigest reads the sidecar of the payload at payloadPath. Returns
// an error matching fs.ErrNotExist when there is none.
func ReadDigest(payloadPath string) (*DigestRecord, error) {
	data, err := os.ReadFile(payloadPath + digestSuffix)
	if err != nil {
		return nil, err
	}
	var record DigestRecord
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding digest record for %s: %w", payloadPath, err)
	}
	if record.Version != DigestRecordVersion {
		return nil, fmt.Errorf("digest record for %s: unsupported version %d", payloadPath, record.Version)
	}
	return &record, nil
}

// verifyingReader checks a redeemed payload against its sidecar when
// it reaches end-of-data.
type verifyingReader struct {
	file     *os.File
	path     string
	hasher   *blake3.Hasher
	size     int64
	expected *DigestRecord
	verified bool
}

func (r *verifyingReader) Read(p []byte) (int, error) {
	n, err := r.file.Read(p)
	if n > 0 {
		r.hasher.Write(p[:n])
		r.size += int64(n)
	}
	if err == io.EOF && !r.verified {
		r.verified = true
		if r.size != r.expected.Size {
			return n, fmt.Errorf("%s: read %d bytes, sidecar records %d: %w",
				r.path, r.size, r.expected.Size, ErrDigestMismatch)
		}
		if !bytes.Equal(r.hasher.Sum(nil), r.expected.Digest) {
			return n, fmt.Errorf("%s: %w", r.path, ErrDigestMismatch)
		}
	}
	return n, err
}

func (r *verifyingReader) Close() error {
	return r.file.Close()
}
