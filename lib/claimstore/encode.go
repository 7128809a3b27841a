// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/claimcheck/lib/bytecopy"
)

// encodeBlockSize is how much raw payload the encoding reader feeds
// the compressor per pull.
const encodeBlockSize = 32 * 1024

// maxEmptySourceReads bounds consecutive (0, nil) source reads.
const maxEmptySourceReads = 100

// inlineEncoding is the text-safe encoding applied after compression.
var inlineEncoding = base64.StdEncoding

// NewEncodingReader returns a reader that yields the inline text form
// of src: compressed with the given codec, then base64-encoded. It is
// pull-based: raw bytes are read from src only as the caller consumes
// output, so a caller that stops early leaves the rest of src unread.
//
// The compressor emits output in frames unrelated to the caller's
// buffer size; frames that do not fit are held in a backlog for the
// next Read.
func NewEncodingReader(src io.Reader, compression Compression) (io.Reader, error) {
	var encoded bytes.Buffer
	text := base64.NewEncoder(inlineEncoding, &encoded)
	compressor, err := newCompressor(text, compression)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, encodeBlockSize)
	finished := false
	pull := func() ([]byte, error) {
		emptyReads := 0
		for encoded.Len() == 0 {
			if finished {
				return nil, io.EOF
			}
			n, err := src.Read(raw)
			if n > 0 {
				emptyReads = 0
				if _, writeErr := compressor.Write(raw[:n]); writeErr != nil {
					return nil, fmt.Errorf("compressing payload: %w", writeErr)
				}
			}
			if err == io.EOF {
				finished = true
				if closeErr := compressor.Close(); closeErr != nil {
					return nil, fmt.Errorf("flushing compressor: %w", closeErr)
				}
				if closeErr := text.Close(); closeErr != nil {
					return nil, fmt.Errorf("flushing encoder: %w", closeErr)
				}
				continue
			}
			if err != nil {
				return nil, err
			}
			if n == 0 {
				emptyReads++
				if emptyReads >= maxEmptySourceReads {
					return nil, io.ErrNoProgress
				}
			}
		}
		// The backlog may retain this block, so hand out a copy and
		// reuse the buffer.
		block := bytes.Clone(encoded.Bytes())
		encoded.Reset()
		return block, nil
	}
	return bytecopy.NewChunkReader(pull), nil
}

// NewDecodingReader reverses NewEncodingReader: text is base64
// decoded and then decompressed.
func NewDecodingReader(text io.Reader, compression Compression) (io.ReadCloser, error) {
	return newDecompressor(base64.NewDecoder(inlineEncoding, text), compression)
}

// EncodeInline returns the inline text form of data.
func EncodeInline(data []byte, compression Compression) (string, error) {
	reader, err := NewEncodingReader(bytes.NewReader(data), compression)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	if _, err := io.Copy(&builder, reader); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// DecodeInline returns the raw payload of an inline text form.
func DecodeInline(text string, compression Compression) ([]byte, error) {
	reader, err := NewDecodingReader(strings.NewReader(text), compression)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decoding inline payload: %w", err)
	}
	return data, nil
}
