// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"bytes"
	"unicode/utf8"
)

// lineBuffer is the parser's unconsumed input: the residue of every
// chunk fed so far, minus consumed lines and guard truncations.
type lineBuffer struct {
	data []byte

	// scanned is a prefix length of data known to contain no '\n'.
	// Segmentation resumes from here, so a long line delivered in many
	// small chunks is scanned once overall.
	scanned int
}

func (buffer *lineBuffer) append(chunk []byte) {
	buffer.data = append(buffer.data, chunk...)
}

func (buffer *lineBuffer) len() int {
	return len(buffer.data)
}

// splitLines returns the complete lines at the front of the buffer and
// the number of bytes they occupy including terminators. The lines
// alias the buffer and stay valid until the next mutation.
func (buffer *lineBuffer) splitLines() (lines [][]byte, consumed int) {
	lines, consumed = splitLines(buffer.data, buffer.scanned)
	buffer.scanned = len(buffer.data)
	return lines, consumed
}

// discard drops the first count bytes, moving the remainder to the
// front of the backing array.
func (buffer *lineBuffer) discard(count int) {
	if count <= 0 {
		return
	}
	remaining := copy(buffer.data, buffer.data[count:])
	buffer.data = buffer.data[:remaining]
	buffer.scanned = max(0, buffer.scanned-count)
}

// tailStart returns the offset at which the last keep bytes begin,
// advanced to the next UTF-8 rune start so the buffer never begins
// mid-rune.
func (buffer *lineBuffer) tailStart(keep int) int {
	start := len(buffer.data) - keep
	if start <= 0 {
		return 0
	}
	for start < len(buffer.data) && !utf8.RuneStart(buffer.data[start]) {
		start++
	}
	return start
}

// shrink releases a backing array far larger than ceiling, left behind
// by a single oversized chunk.
func (buffer *lineBuffer) shrink(ceiling int) {
	if cap(buffer.data) <= 2*ceiling {
		return
	}
	buffer.data = append(make([]byte, 0, max(len(buffer.data), ceiling/2)), buffer.data...)
}

func (buffer *lineBuffer) reset() {
	buffer.data = buffer.data[:0]
	buffer.scanned = 0
}

// splitLines splits data on '\n'. Every segment followed by a
// terminator is a complete line; the final segment, possibly empty, is
// the incomplete tail and is not returned. The search starts at from,
// which callers use to skip a prefix already known to hold no
// terminator. consumed is the length of the complete lines including
// their terminators.
func splitLines(data []byte, from int) (lines [][]byte, consumed int) {
	start := 0
	position := from
	for position < len(data) {
		index := bytes.IndexByte(data[position:], '\n')
		if index < 0 {
			break
		}
		end := position + index
		lines = append(lines, data[start:end])
		start = end + 1
		position = start
	}
	return lines, start
}
