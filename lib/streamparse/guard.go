// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"fmt"
)

// enforceCeiling keeps the buffer at or below the ceiling. When the
// buffer has grown past it, the oldest bytes are dropped so that at
// most ceiling/2 remain, and the returned ParseError describes the
// loss. dropped is the number of bytes discarded. Returns a nil error
// when the buffer is within bounds.
//
// Truncation is a best-effort resynchronization: the kept tail usually
// starts mid-line, so the first line completed after an overflow is a
// fragment and yields one extra skip or error outcome.
func enforceCeiling(buffer *lineBuffer, ceiling, excerptLength int) (overflow *ParseError, dropped int) {
	length := buffer.len()
	if length <= ceiling {
		return nil, 0
	}
	dropped = buffer.tailStart(ceiling / 2)
	discardedExcerpt := excerpt(buffer.data[:dropped], excerptLength)
	buffer.discard(dropped)
	buffer.shrink(ceiling)
	return &ParseError{
		Kind: ErrorOverflow,
		Reason: fmt.Sprintf("buffer of %d bytes exceeded ceiling of %d bytes; discarded %d oldest bytes",
			length, ceiling, dropped),
		Excerpt: discardedExcerpt,
	}, dropped
}
