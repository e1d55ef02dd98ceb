// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentstream runs an agent CLI and turns its stdout into
// structured session events.
//
// The agent's stdout is read in fixed-size chunks by [Pump] and fed to
// a [streamparse.Parser]. Messages the parser recovers become [Event]
// values via [EventFromMessage]; parse errors become error events via
// [EventFromParseError]. Chunk boundaries are whatever the pipe
// delivers, so nothing here assumes a read ends on a line.
//
//   - [Driver] spawns the agent process and interrupts it.
//     [CommandDriver] runs an arbitrary argv in its own process group.
//   - [SessionLogWriter] appends events as JSONL, zstd-compressed when
//     the path ends in .zst, and keeps summary counters.
//   - [Run] ties it together: start, pump, log, record the raw
//     transcript, forward SIGINT/SIGTERM, wait, and summarize.
package agentstream
