// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The claim store derives date partitions and capture timestamps from
// the current time. Production code passes Real(); tests pass a
// [FakeClock] pinned to a known instant so partitions are
// deterministic:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store, err := claimstore.New(claimstore.Config{Clock: c, ...})
//	c.Advance(24 * time.Hour) // next partition
package clock
