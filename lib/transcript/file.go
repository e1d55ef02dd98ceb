// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/agentstream/lib/codec"
)

// magic identifies a transcript file.
var magic = [4]byte{'A', 'S', 'T', 'R'}

// formatVersion is the current header version.
const formatVersion = 1

// maxBodySize bounds the uncompressed body a header may claim, so a
// corrupt header cannot trigger an enormous allocation.
const maxBodySize = 1 << 30

// header precedes the body of a transcript file.
type header struct {
	Version     int         `cbor:"version"`
	Compression Compression `cbor:"compression"`
	ChunkCount  int         `cbor:"chunk_count"`
	BodySize    int         `cbor:"body_size"`
	Digest      []byte      `cbor:"digest"`
}

// Save writes transcript to w with the requested compression. When the
// body does not shrink, it is stored uncompressed and the header says
// so.
func Save(w io.Writer, transcript *Transcript, compression Compression) error {
	body, err := codec.Marshal(transcript.Chunks)
	if err != nil {
		return fmt.Errorf("encoding transcript chunks: %w", err)
	}

	stored, err := compress(body, compression)
	if errors.Is(err, errIncompressible) {
		stored, compression = body, CompressionNone
	} else if err != nil {
		return fmt.Errorf("compressing transcript: %w", err)
	}

	digest := transcript.Digest()
	headerBytes, err := codec.Marshal(header{
		Version:     formatVersion,
		Compression: compression,
		ChunkCount:  len(transcript.Chunks),
		BodySize:    len(body),
		Digest:      digest[:],
	})
	if err != nil {
		return fmt.Errorf("encoding transcript header: %w", err)
	}

	var prefix [8]byte
	copy(prefix[:4], magic[:])
	binary.BigEndian.PutUint32(prefix[4:], uint32(len(headerBytes)))
	for _, part := range [][]byte{prefix[:], headerBytes, stored} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("writing transcript: %w", err)
		}
	}
	return nil
}

// Load reads a transcript written by Save and verifies its digest.
func Load(r io.Reader) (*Transcript, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	if len(data) < 8 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("not a transcript file (missing %q magic)", magic[:])
	}
	// Compared as uint64 so a huge length cannot wrap int on 32-bit
	// platforms.
	rawHeaderLength := binary.BigEndian.Uint32(data[4:8])
	if uint64(rawHeaderLength) > uint64(len(data)-8) {
		return nil, fmt.Errorf("transcript header length %d exceeds file size %d", rawHeaderLength, len(data))
	}
	headerLength := int(rawHeaderLength)

	var fileHeader header
	if err := codec.Unmarshal(data[8:8+headerLength], &fileHeader); err != nil {
		return nil, fmt.Errorf("decoding transcript header: %w", err)
	}
	if fileHeader.Version != formatVersion {
		return nil, fmt.Errorf("unsupported transcript version %d (want %d)", fileHeader.Version, formatVersion)
	}
	if fileHeader.BodySize < 0 || fileHeader.BodySize > maxBodySize {
		return nil, fmt.Errorf("transcript body size %d out of range", fileHeader.BodySize)
	}

	body, err := decompress(data[8+headerLength:], fileHeader.Compression, fileHeader.BodySize)
	if err != nil {
		return nil, fmt.Errorf("decompressing transcript body: %w", err)
	}

	transcript := &Transcript{}
	if err := codec.Unmarshal(body, &transcript.Chunks); err != nil {
		return nil, fmt.Errorf("decoding transcript chunks: %w", err)
	}
	if len(transcript.Chunks) != fileHeader.ChunkCount {
		return nil, fmt.Errorf("transcript has %d chunks, header says %d", len(transcript.Chunks), fileHeader.ChunkCount)
	}
	digest := transcript.Digest()
	if !bytes.Equal(digest[:], fileHeader.Digest) {
		return nil, fmt.Errorf("transcript digest mismatch: content %x, header %x", digest, fileHeader.Digest)
	}
	return transcript, nil
}

// WriteFile saves transcript to path, replacing any existing file.
func WriteFile(path string, transcript *Transcript, compression Compression) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating transcript %q: %w", path, err)
	}
	if err := Save(file, transcript, compression); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing transcript %q: %w", path, err)
	}
	return nil
}

// ReadFile loads the transcript stored at path.
func ReadFile(path string) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript %q: %w", path, err)
	}
	defer file.Close()
	return Load(file)
}
