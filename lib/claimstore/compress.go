// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the codec applied to inline payloads before
// base64 encoding. The tag is recorded in every inline descriptor, so
// these values are protocol constants.
type Compression uint8

const (
	// CompressionZstd is streaming zstd at the default level. Best
	// ratio for the XML, JSON, and flat-file bodies that dominate
	// pipeline traffic.
	CompressionZstd Compression = 0

	// CompressionLZ4 is the LZ4 frame format. Cheaper on CPU, larger
	// output; useful when capture latency matters more than how many
	// payloads fit inline.
	CompressionLZ4 Compression = 1

	// CompressionNone base64-encodes the raw bytes. The inline size is
	// then exactly predictable (4 characters per 3 bytes).
	CompressionNone Compression = 2
)

// String returns the configuration name of the codec.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a codec from its configuration name. The
// empty string selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	if c > CompressionNone {
		return nil, fmt.Errorf("unsupported compression: %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// newCompressor returns a writer that compresses into w. Closing it
// flushes the final frame but does not close w.
func newCompressor(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return encoder, nil

	case CompressionLZ4:
		writer := lz4.NewWriter(w)
		if err := writer.Apply(lz4.BlockSizeOption(lz4.Block64Kb)); err != nil {
			return nil, fmt.Errorf("lz4 encoder: %w", err)
		}
		return writer, nil

	case CompressionNone:
		return nopWriteCloser{w}, nil

	default:
		return nil, fmt.Errorf("unsupported compression: %d", uint8(compression))
	}
}

// newDecompressor returns a reader that decompresses r.
func newDecompressor(r io.Reader, compression Compression) (io.ReadCloser, error) {
	switch compression {
	case CompressionZstd:
		decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return decoder.IOReadCloser(), nil

	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil

	case CompressionNone:
		return io.NopCloser(r), nil

	default:
		return nil, fmt.Errorf("unsupported compression: %d", uint8(compression))
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
