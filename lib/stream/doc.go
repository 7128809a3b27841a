// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream provides the pull-based byte-stream decorators the
// capture pipeline is assembled from.
//
// Every type here is a synchronous [io.ReadCloser] that exclusively
// owns the stream it wraps. Closing the outermost decorator closes
// inward exactly once; any operation after Close fails with
// [ErrDisposed]. None of the types are safe for concurrent use: a
// decorator chain belongs to one reader at a time.
//
//   - [Aggregator] presents an ordered list of sub-streams as one
//     document, framing each part in fixed delimiters. It is driven by
//     an explicit state enum and supports rewinding to zero only.
//
//   - [CompletionReader] fills every caller buffer completely (or up
//     to end-of-data) by looping on the source, and fires a one-shot
//     completion callback at the first internal io.EOF. Callers that
//     stop reading after a short read still trigger completion.
//
//   - [ReplicatingReader] writes every byte it returns into a sink and
//     finalizes the sink exactly once at end-of-data: Commit for a
//     [Committer], Close otherwise. Closing early abandons the sink via
//     [Discarder] when available.
//
//   - [Rewinder] lets a caller probe a stream and then obtain a fresh
//     cursor at the probe's starting position, once. It reads the raw
//     source, so probing never fires a completion callback further up
//     the chain.
//
// Seeking is unsupported unless a type documents otherwise; length
// queries fail with [ErrUnsupported] until the length is known.
package stream
