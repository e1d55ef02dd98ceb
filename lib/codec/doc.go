// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR configuration for on-disk
// formats.
//
// JSON stays the format of everything an agent CLI emits and of the
// session log. CBOR is used where the bytes are ours: transcript files
// recorded from agent stdout. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2), so the same transcript always serializes
// to the same bytes and digests over encoded data are stable.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized only as CBOR carry `cbor` struct tags. Types that
// are also written as JSON carry `json` tags, which fxamacker/cbor
// reads as a fallback; never put both on one field.
package codec
