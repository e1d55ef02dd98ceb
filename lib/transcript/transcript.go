// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/agentstream/lib/clock"
)

// Chunk is one read from the agent's stdout.
type Chunk struct {
	// Offset is the time since recording started.
	Offset time.Duration `cbor:"offset"`

	// Data is the chunk exactly as read. It may end in the middle of
	// a line or of a UTF-8 sequence.
	Data []byte `cbor:"data"`
}

// Transcript is an ordered list of recorded chunks.
type Transcript struct {
	Chunks []Chunk
}

// Size returns the total number of recorded bytes.
func (transcript *Transcript) Size() int {
	size := 0
	for _, chunk := range transcript.Chunks {
		size += len(chunk.Data)
	}
	return size
}

// Digest returns the BLAKE3 hash of the concatenated chunk data. Chunk
// boundaries do not affect the digest: two recordings of the same
// output split differently hash equal.
func (transcript *Transcript) Digest() [32]byte {
	hasher := blake3.New()
	for _, chunk := range transcript.Chunks {
		hasher.Write(chunk.Data)
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Recorder captures chunks as they are written. Use it as the second
// destination of an io.TeeReader or io.MultiWriter in front of a
// parser. It is safe for concurrent use.
type Recorder struct {
	clock clock.Clock
	start time.Time

	mutex  sync.Mutex
	chunks []Chunk
}

// NewRecorder starts a recording. Chunk offsets are measured from now
// on the given clock.
func NewRecorder(clock clock.Clock) *Recorder {
	return &Recorder{
		clock: clock,
		start: clock.Now(),
	}
}

// Write records a copy of p as one chunk. Empty writes are ignored.
func (recorder *Recorder) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := Chunk{
		Offset: recorder.clock.Now().Sub(recorder.start),
		Data:   append([]byte(nil), p...),
	}
	recorder.mutex.Lock()
	recorder.chunks = append(recorder.chunks, chunk)
	recorder.mutex.Unlock()
	return len(p), nil
}

// Transcript returns the chunks recorded so far. The returned
// transcript shares chunk data with the recorder, which never modifies
// recorded chunks.
func (recorder *Recorder) Transcript() *Transcript {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return &Transcript{Chunks: append([]Chunk(nil), recorder.chunks...)}
}

// Feeder is the part of a stream parser that Replay drives.
// *streamparse.Parser implements it.
type Feeder interface {
	Feed(chunk string)
	Flush()
}

// Replay feeds every chunk of transcript to feeder in recorded order,
// then flushes it, as the pump does when the agent exits.
func Replay(transcript *Transcript, feeder Feeder) {
	for _, chunk := range transcript.Chunks {
		feeder.Feed(string(chunk.Data))
	}
	feeder.Flush()
}
