// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"fmt"

	"github.com/bureau-foundation/claimcheck/lib/codec"
)

// TokenKind tells a token's holder whether the payload it stands for
// can be fetched yet.
type TokenKind uint8

const (
	// TokenImmediate refers to a payload written straight to the
	// shared directory. Redeemable right away.
	TokenImmediate TokenKind = iota + 1

	// TokenPendingTransfer refers to a payload still in the local
	// check-in directory. It also serves as the marker the relocation
	// job consumes. Redeeming it is an error.
	TokenPendingTransfer

	// TokenTransferred refers to a payload the relocation job has
	// moved into the shared directory. Redeemable.
	TokenTransferred
)

// String returns the wire name of the kind.
func (k TokenKind) String() string {
	switch k {
	case TokenImmediate:
		return "immediate"
	case TokenPendingTransfer:
		return "pending_transfer"
	case TokenTransferred:
		return "transferred"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TokenKind) MarshalText() ([]byte, error) {
	if k < TokenImmediate || k > TokenTransferred {
		return nil, fmt.Errorf("unknown token kind: %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TokenKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "immediate":
		*k = TokenImmediate
	case "pending_transfer":
		*k = TokenPendingTransfer
	case "transferred":
		*k = TokenTransferred
	default:
		return fmt.Errorf("unknown token kind: %q", text)
	}
	return nil
}

// Token is the small message that replaces a claimed payload in the
// pipeline.
type Token struct {
	Kind     TokenKind `cbor:"kind"     json:"kind"`
	Location Location  `cbor:"location" json:"location"`
}

// Redeemable reports whether the payload can be fetched with this
// token. Only pending tokens cannot.
func (t Token) Redeemable() bool {
	return t.Kind == TokenImmediate || t.Kind == TokenTransferred
}

// Transferred returns the redeemable form of a pending token, for use
// once relocation is known to be complete. Other kinds are returned
// unchanged.
func (t Token) Transferred() Token {
	if t.Kind == TokenPendingTransfer {
		t.Kind = TokenTransferred
	}
	return t
}

// Validate checks that the token has a known kind and a well-formed
// location.
func (t Token) Validate() error {
	if _, err := t.Kind.MarshalText(); err != nil {
		return err
	}
	if _, err := ParseLocation(string(t.Location)); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	return nil
}

// MarshalToken encodes t as deterministic CBOR.
func MarshalToken(t Token) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return codec.Marshal(t)
}

// UnmarshalToken decodes and validates a CBOR token.
func UnmarshalToken(data []byte) (Token, error) {
	var t Token
	if err := codec.Unmarshal(data, &t); err != nil {
		return Token{}, fmt.Errorf("decoding token: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}
