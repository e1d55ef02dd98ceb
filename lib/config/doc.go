// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agentstream configuration.
//
// Configuration comes from a single file named by the --config flag or
// the AGENTSTREAM_CONFIG environment variable. There is no discovery
// and no per-field environment override: what the file says is what
// runs. When neither is given, [Resolve] returns [Defaults].
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas allowed (tidwall/jsonc). Everything else is YAML.
// Fields absent from the file keep their default values.
//
// ${VAR} and ${VAR:-default} are expanded in path fields after
// loading.
//
//   - [Config] groups the parser, agent, session_log, transcript, and
//     logging sections
//   - [ParserConfig.StreamParse] converts the parser section into a
//     [streamparse.Config]
package config
