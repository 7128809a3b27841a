// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used for everything
// the claim store writes: reference tokens handed to the pipeline and
// digest sidecars kept next to captured payloads.
//
// Encoding uses RFC 8949 Core Deterministic Encoding, so the same
// token always produces the same bytes and tokens can be compared or
// hashed without decoding. Types implementing encoding.TextMarshaler
// serialize as CBOR text strings. Decoding ignores unknown fields so
// older readers accept newer tokens.
//
// Struct types use cbor struct tags; fxamacker/cbor falls back to json
// tags when a cbor tag is absent.
package codec
