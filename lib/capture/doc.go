// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture captures message bodies while a pipeline reads
// them.
//
// A [Stream] wraps the body source. Once its owner has decided how
// the body is kept, reads flow through a chain built from
// [stream.CompletionReader] and, for external captures,
// [stream.ReplicatingReader] writing into a [claimstore.Sink]. The
// consumer sees the original bytes; the capture is finalized as a
// side effect of reaching end-of-data.
//
// [Stream.SetupCapture] applies the tracking policy. Bodies below
// [TrackBody] are not captured. Claimed bodies ([TrackClaim]) are
// always stored externally and replaced in the message context by a
// [claimstore.Token]. Other bodies are probed against the store's
// inline threshold through a [stream.Rewinder], so the probe never
// triggers completion, and captured inline when they fit.
//
// [Redeem] turns a [Descriptor] back into the original payload.
//
// The policy evaluator, the activity log and the message context are
// owned by the hosting pipeline and reached through [PolicyResolver],
// [ActivityLog] and [ContextStore].
package capture
