// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package claimstore is the external store behind message-body
// capture. It decides whether a payload may travel inline, allocates
// external locations, persists captured payloads, and issues and
// redeems the small reference tokens that stand in for claimed
// payloads.
//
//   - Threshold: a payload stays inline only if its compressed,
//     base64-encoded form is at most [Store.Threshold] bytes.
//     [DefaultThreshold] is derived from the inline record ceiling of
//     the tracking store, which counts two bytes per character.
//     [Store.Assess] measures this by pulling an encoding reader and
//     stops as soon as the threshold is crossed.
//
//   - Codec: [Compression] selects zstd (default), LZ4 frames, or no
//     compression. [NewEncodingReader] and [NewDecodingReader] convert
//     between raw bytes and the inline text form.
//
//   - Locations: <YYYYMMDD>/<ULID>. The day partition groups entries
//     for retention sweeps; the ULID comes from a process-wide
//     monotonic entropy source, so concurrent captures never collide.
//
//   - Two-phase persistence: when the local (check-in) directory and
//     the shared (check-out) directory are the same, payloads are
//     written straight to their redeemable location. Otherwise they
//     land in the local directory with a ".trk" (tracked) or ".chk"
//     (claimed) extension, and an out-of-process relocation job moves
//     them to the shared directory later.
//
//   - Sinks: every sink hashes what it writes with BLAKE3 and records
//     size and digest in a CBOR sidecar (<file>.b3) when finalized.
//     Sinks created under a [Transaction] stage into a temporary file
//     and become visible only on Commit.
//
//   - Redeem: a location resolves as an absolute path or file URL when
//     it is one, and relative to the shared directory otherwise. When a
//     sidecar is present the returned reader verifies size and digest
//     at end-of-data.
//
// A [Store] is an explicit value built from [Config] once at startup
// and passed to whoever needs it. It is safe for concurrent use; each
// Sink and each redeemed reader belongs to a single caller.
package claimstore
