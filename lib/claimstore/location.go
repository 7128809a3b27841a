// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// partitionLayout formats the day partition of a location.
const partitionLayout = "20060102"

// Location is the relative path of an external capture:
// <YYYYMMDD>/<ULID>. The partition is the UTC capture day.
type Location string

// newLocation allocates a location for a capture made at now. ULIDs
// draw on a process-wide monotonic entropy source, so locations
// generated concurrently within the same millisecond still differ.
func newLocation(now time.Time) (Location, error) {
	id, err := ulid.New(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err != nil {
		return "", fmt.Errorf("generating capture id: %w", err)
	}
	return Location(now.UTC().Format(partitionLayout) + "/" + id.String()), nil
}

// ParseLocation validates that s has the <YYYYMMDD>/<ULID> form.
func ParseLocation(s string) (Location, error) {
	partition, id, ok := strings.Cut(s, "/")
	if !ok {
		return "", fmt.Errorf("location %q: missing partition separator", s)
	}
	if _, err := time.Parse(partitionLayout, partition); err != nil {
		return "", fmt.Errorf("location %q: invalid partition: %w", s, err)
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", fmt.Errorf("location %q: invalid id: %w", s, err)
	}
	return Location(s), nil
}

// Partition returns the day partition (YYYYMMDD).
func (l Location) Partition() string {
	partition, _, _ := strings.Cut(string(l), "/")
	return partition
}

// ID returns the unique id component.
func (l Location) ID() string {
	_, id, _ := strings.Cut(string(l), "/")
	return id
}

func (l Location) String() string { return string(l) }

// CaptureKind distinguishes a payload that is merely tracked from one
// that has been claimed and replaced by a token. The distinction only
// shows on disk when payloads go through local check-in.
type CaptureKind uint8

const (
	// KindTracked is a captured body kept for tracking. The pipeline
	// still carries the original payload.
	KindTracked CaptureKind = iota

	// KindClaimed is a claim-checked body. The pipeline carries a
	// [Token] in its place.
	KindClaimed
)

// String returns the name of the kind.
func (k CaptureKind) String() string {
	switch k {
	case KindTracked:
		return "tracked"
	case KindClaimed:
		return "claimed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k CaptureKind) MarshalText() ([]byte, error) {
	if k > KindClaimed {
		return nil, fmt.Errorf("unknown capture kind: %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CaptureKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "tracked":
		*k = KindTracked
	case "claimed":
		*k = KindClaimed
	default:
		return fmt.Errorf("unknown capture kind: %q", text)
	}
	return nil
}

// checkInExtension is the filename extension a payload of this kind
// gets in the local check-in directory.
func (k CaptureKind) checkInExtension() string {
	if k == KindClaimed {
		return ".chk"
	}
	return ".trk"
}
