// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package streamparse turns the chunked stdout of an agent CLI into a
// sequence of typed messages.
//
// Agent CLIs write newline-delimited JSON records to stdout, but the
// same descriptor also carries interactive terminal rendering (spinner
// frames drawn with box-drawing glyphs, ANSI escape sequences) and
// free-form status text. Chunks arrive with no alignment to line
// boundaries: a record, or a multi-byte UTF-8 sequence, can be split
// anywhere.
//
// A [Parser] owns a single growable buffer. Each [Parser.Feed] call:
//
//   - appends the chunk and enforces the buffer ceiling (the guard),
//     discarding the oldest half of the buffer and reporting an
//     overflow error when the ceiling is exceeded;
//   - splits off every complete line, keeping the trailing fragment;
//   - classifies each line as decoration, control sequence, plain
//     text, or JSON candidate;
//   - decodes JSON candidates into a [Message] with a "type"
//     discriminator and the untouched payload.
//
// Every line produces at most one [Outcome], delivered synchronously
// to subscribed listeners in source line order. Noise lines are
// reported as skipped, malformed records as errors; no input stops
// the parser from accepting further chunks. [Parser.Flush] processes
// an unterminated trailing fragment at end of stream and
// [Parser.Reset] discards all buffered state when a new stream
// attaches.
//
// Each physical line is decoded on its own. Pretty-printed JSON that
// spans several lines is not reassembled: its opening line fails to
// decode and the remaining lines are skipped as text.
//
// A Parser performs no I/O, starts no goroutines, and takes no locks.
// Callers serialize all calls on a given Parser; use one Parser per
// subprocess stream.
package streamparse
