// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript records the raw stdout chunks of an agent process
// and replays them into a parser.
//
// Parsing bugs in stream handling usually depend on exactly where the
// operating system split the output. A transcript preserves those
// boundaries: each [Chunk] is one read from the pipe, with its offset
// from the start of the session. [Replay] feeds the chunks back in
// order, so a captured session reproduces the same outcomes byte for
// byte.
//
// On disk a transcript is:
//
//	magic "ASTR" | uint32 header length | CBOR header | body
//
// The header records the format version, the compression applied to
// the body, the chunk count, the uncompressed body size, and a BLAKE3
// digest of the concatenated chunk data. The body is the CBOR-encoded
// chunk list, compressed with LZ4 or zstd, or stored as-is when
// compression does not help. [Load] verifies the digest, so a
// truncated or corrupted file is rejected instead of replayed.
package transcript
