// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/claimcheck/lib/claimstore"
)

// Mode says where a captured payload lives.
type Mode uint8

const (
	// ModeInline payloads travel in the descriptor as compressed,
	// base64-encoded text.
	ModeInline Mode = iota

	// ModeExternal payloads live in the claim store; the descriptor
	// holds their location.
	ModeExternal
)

func (m Mode) String() string {
	switch m {
	case ModeInline:
		return "inline"
	case ModeExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m > ModeExternal {
		return nil, fmt.Errorf("unknown capture mode: %d", uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "inline":
		*m = ModeInline
	case "external":
		*m = ModeExternal
	default:
		return fmt.Errorf("unknown capture mode: %q", text)
	}
	return nil
}

// Descriptor records how a payload was captured. For inline captures
// Data is the encoded payload (possibly empty) and Compression the
// codec it was encoded with. For external captures Data is the
// store-relative location.
type Descriptor struct {
	Data        string                 `json:"data"        cbor:"data"`
	Mode        Mode                   `json:"mode"        cbor:"mode"`
	Compression claimstore.Compression `json:"compression" cbor:"compression"`
}

// Inline returns the descriptor of an inline capture.
func Inline(encoded string, compression claimstore.Compression) Descriptor {
	return Descriptor{Data: encoded, Mode: ModeInline, Compression: compression}
}

// External returns the descriptor of a capture stored at location.
func External(location claimstore.Location) Descriptor {
	return Descriptor{Data: string(location), Mode: ModeExternal}
}

// Validate checks the mode and, for external captures, that a
// location is present.
func (d Descriptor) Validate() error {
	if _, err := d.Mode.MarshalText(); err != nil {
		return err
	}
	if _, err := d.Compression.MarshalText(); err != nil {
		return err
	}
	if d.Mode == ModeExternal && d.Data == "" {
		return errors.New("external capture descriptor without a location")
	}
	return nil
}

// Location returns the external location. Empty for inline captures.
func (d Descriptor) Location() claimstore.Location {
	if d.Mode != ModeExternal {
		return ""
	}
	return claimstore.Location(d.Data)
}

// inlineData returns Data for inline descriptors.
func (d Descriptor) inlineData() string {
	if d.Mode != ModeInline {
		return ""
	}
	return d.Data
}
