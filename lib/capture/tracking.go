// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"strings"
)

// TrackingModes is how much of a message a tracking policy keeps.
// Levels are cumulative: each one includes every level below it.
type TrackingModes uint8

const (
	// TrackNone records nothing.
	TrackNone TrackingModes = 0

	// TrackStep records that the pipeline stage ran.
	TrackStep TrackingModes = 1

	// TrackContext also records the message context.
	TrackContext = TrackStep | 1<<1

	// TrackBody also captures the message body.
	TrackBody = TrackContext | 1<<2

	// TrackClaim also claims the body: it is always stored externally
	// and replaced by a token.
	TrackClaim = TrackBody | 1<<3
)

var trackingNames = []struct {
	mode TrackingModes
	name string
}{
	{TrackNone, "none"},
	{TrackStep, "step"},
	{TrackContext, "context"},
	{TrackBody, "body"},
	{TrackClaim, "claim"},
}

// Includes reports whether m covers every level in other.
func (m TrackingModes) Includes(other TrackingModes) bool {
	return m&other == other
}

// RequiresCapture reports whether the body must be captured.
func (m TrackingModes) RequiresCapture() bool { return m.Includes(TrackBody) }

// RequiresClaim reports whether the body must be claimed.
func (m TrackingModes) RequiresClaim() bool { return m.Includes(TrackClaim) }

// String returns the name of the highest level m includes.
func (m TrackingModes) String() string {
	name := "none"
	for _, level := range trackingNames {
		if m.Includes(level.mode) {
			name = level.name
		}
	}
	return name
}

// ParseTrackingModes parses a level name, case-insensitively.
func ParseTrackingModes(name string) (TrackingModes, error) {
	for _, level := range trackingNames {
		if strings.EqualFold(name, level.name) {
			return level.mode, nil
		}
	}
	return TrackNone, fmt.Errorf("unknown tracking mode: %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (m TrackingModes) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *TrackingModes) UnmarshalText(text []byte) error {
	parsed, err := ParseTrackingModes(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
