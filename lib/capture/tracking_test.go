// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/claimcheck/lib/claimstore"
	"github.com/bureau-foundation/claimcheck/lib/testutil"
)

func TestTrackingLattice(t *testing.T) {
	ordered := []TrackingModes{TrackNone, TrackStep, TrackContext, TrackBody, TrackClaim}
	for i, higher := range ordered {
		for j, lower := range ordered {
			if got, want := higher.Includes(lower), j <= i; got != want {
				t.Errorf("%v.Includes(%v) = %v, want %v", higher, lower, got, want)
			}
		}
	}

	tests := []struct {
		modes       TrackingModes
		wantCapture bool
		wantClaim   bool
		wantName    string
	}{
		{TrackNone, false, false, "none"},
		{TrackStep, false, false, "step"},
		{TrackContext, false, false, "context"},
		{TrackBody, true, false, "body"},
		{TrackClaim, true, true, "claim"},
	}
	for _, tt := range tests {
		if got := tt.modes.RequiresCapture(); got != tt.wantCapture {
			t.Errorf("%v.RequiresCapture() = %v, want %v", tt.modes, got, tt.wantCapture)
		}
		if got := tt.modes.RequiresClaim(); got != tt.wantClaim {
			t.Errorf("%v.RequiresClaim() = %v, want %v", tt.modes, got, tt.wantClaim)
		}
		if got := tt.modes.String(); got != tt.wantName {
			t.Errorf("String() = %q, want %q", got, tt.wantName)
		}
		parsed, err := ParseTrackingModes(tt.wantName)
		if err != nil {
			t.Fatalf("ParseTrackingModes(%q): %v", tt.wantName, err)
		}
		if parsed != tt.modes {
			t.Errorf("ParseTrackingModes(%q) = %v, want %v", tt.wantName, parsed, tt.modes)
		}
	}

	if _, err := ParseTrackingModes("everything"); err == nil {
		t.Error("ParseTrackingModes accepted an unknown name")
	}
	if parsed, err := ParseTrackingModes("Claim"); err != nil || parsed != TrackClaim {
		t.Errorf("ParseTrackingModes is case sensitive: %v, %v", parsed, err)
	}
}

func TestStaticPolicies(t *testing.T) {
	policies := StaticPolicies{"orders": TrackClaim, "audit": TrackBody}

	modes, err := policies.ResolveTracking(context.Background(), "orders")
	if err != nil || modes != TrackClaim {
		t.Errorf("ResolveTracking(orders) = %v, %v", modes, err)
	}
	_, err = policies.ResolveTracking(context.Background(), "missing")
	testutil.RequireErrorIs(t, err, ErrUnknownPolicy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = policies.ResolveTracking(ctx, "orders")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ResolveTracking with a cancelled context = %v", err)
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name       string
		descriptor Descriptor
		wantErr    bool
	}{
		{"empty inline", Inline("", claimstore.CompressionZstd), false},
		{"external", External("20260101/01HZY5V4X9M5N2QW3E4R5T6Y7Z"), false},
		{"external without location", Descriptor{Mode: ModeExternal}, true},
		{"unknown mode", Descriptor{Mode: 9}, true},
		{"unknown compression", Descriptor{Compression: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.descriptor.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if External("20260101/x").Location() != "20260101/x" {
		t.Error("Location() of an external descriptor")
	}
	if Inline("abc", claimstore.CompressionNone).Location() != "" {
		t.Error("inline descriptor reports a location")
	}
}
