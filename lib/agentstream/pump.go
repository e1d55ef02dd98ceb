// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentstream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the read size Pump uses when given zero.
const DefaultChunkSize = 32 * 1024

// StreamWriter receives raw stdout bytes. *streamparse.Parser
// implements it.
type StreamWriter interface {
	io.Writer

	// Flush processes a final line that has no terminator.
	Flush()
}

// Pump reads stdout in chunkSize reads and writes each chunk to parser
// as delivered, with no line alignment. At EOF it flushes parser and
// returns nil. A read error is returned without flushing, since the
// trailing bytes may be a partial record. Cancelling ctx stops the pump
// before the next read; a read already blocked returns when the pipe
// closes.
func Pump(ctx context.Context, stdout io.Reader, parser StreamWriter, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		count, err := stdout.Read(chunk)
		if count > 0 {
			parser.Write(chunk[:count])
		}
		if errors.Is(err, io.EOF) {
			parser.Flush()
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading agent stdout: %w", err)
		}
	}
}
