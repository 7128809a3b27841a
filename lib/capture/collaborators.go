// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"fmt"
)

// ContextNamespace is the message-context namespace capture
// properties are written under.
const ContextNamespace = "urn:bureau:claimcheck"

// Message-context property names.
const (
	// PropertyToken holds the encoded claim token of a claimed body.
	PropertyToken = "ClaimToken"

	// PropertyDescriptor holds the capture descriptor.
	PropertyDescriptor = "CaptureDescriptor"
)

// PolicyResolver maps a tracking policy name to the modes it
// prescribes.
type PolicyResolver interface {
	ResolveTracking(ctx context.Context, policy string) (TrackingModes, error)
}

// ActivityLog is the persisted tracking log captures are recorded in.
type ActivityLog interface {
	RecordCapture(activityID string, descriptor Descriptor, length int64) error
}

// ContextStore is the message context of the pipeline hosting the
// stream.
type ContextStore interface {
	Read(name, namespace string) (any, bool)
	Write(name, namespace string, value any)
}

// ErrUnknownPolicy is returned by [StaticPolicies] for names it does
// not define.
var ErrUnknownPolicy = errors.New("capture: unknown tracking policy")

// StaticPolicies resolves policies from a fixed table, as loaded from
// configuration.
type StaticPolicies map[string]TrackingModes

// ResolveTracking implements PolicyResolver.
func (p StaticPolicies) ResolveTracking(ctx context.Context, policy string) (TrackingModes, error) {
	if err := ctx.Err(); err != nil {
		return TrackNone, err
	}
	modes, ok := p[policy]
	if !ok {
		return TrackNone, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	return modes, nil
}
