// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bytecopy implements the buffering contract that lets a
// block-oriented producer feed a caller-sized read buffer.
//
// Producers such as compression framing or synthetic delimiters emit
// blocks whose size has nothing to do with the buffer handed to Read.
// [Copy] moves as much of one block as fits and hands back the rest;
// [Backlog] holds that remainder between calls and drains it into the
// next destination before asking the producer for more. No byte is
// copied twice and none is dropped.
//
// [NewChunkReader] packages the contract as an [io.Reader] over a pull
// function.
//
// This package has no Bureau-internal dependencies.
package bytecopy
