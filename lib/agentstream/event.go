// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentstream

import (
	"encoding/json"
	"time"

	"github.com/bureau-foundation/agentstream/lib/streamparse"
)

// EventType classifies session log events.
type EventType string

const (
	// EventTypeToolCall is a tool invocation by the agent.
	EventTypeToolCall EventType = "tool_call"

	// EventTypeToolResult is the result of a tool invocation.
	EventTypeToolResult EventType = "tool_result"

	// EventTypeResponse is assistant text.
	EventTypeResponse EventType = "response"

	// EventTypeThinking is a reasoning block.
	EventTypeThinking EventType = "thinking"

	// EventTypeSystem marks step boundaries and other lifecycle records.
	EventTypeSystem EventType = "system"

	// EventTypeMetric carries token, cost, and turn counts.
	EventTypeMetric EventType = "metric"

	// EventTypeError is an error reported by the agent, or a line the
	// parser could not decode.
	EventTypeError EventType = "error"

	// EventTypeOutput is a message whose type has no structured mapping.
	EventTypeOutput EventType = "output"
)

// Event is one session log entry, serialized as a JSONL line.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Line is the stream line the event was decoded from, or zero for
	// events not tied to a line.
	Line int `json:"line,omitempty"`

	ToolCall   *ToolCallEvent   `json:"tool_call,omitempty"`
	ToolResult *ToolResultEvent `json:"tool_result,omitempty"`
	Response   *ResponseEvent   `json:"response,omitempty"`
	Thinking   *ThinkingEvent   `json:"thinking,omitempty"`
	System     *SystemEvent     `json:"system,omitempty"`
	Metric     *MetricEvent     `json:"metric,omitempty"`
	Error      *ErrorEvent      `json:"error,omitempty"`
	Output     *OutputEvent     `json:"output,omitempty"`
}

// ToolCallEvent records a tool invocation.
type ToolCallEvent struct {
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResultEvent records the result of a tool invocation.
type ToolResultEvent struct {
	// ID matches ToolCallEvent.ID.
	ID      string `json:"id,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Output  string `json:"output,omitempty"`
}

// ResponseEvent records assistant text.
type ResponseEvent struct {
	Content string `json:"content"`
}

// ThinkingEvent records a reasoning block.
type ThinkingEvent struct {
	Content string `json:"content"`
}

// SystemEvent records lifecycle messages such as step boundaries.
type SystemEvent struct {
	Subtype string `json:"subtype"`

	// Metadata is the full message payload.
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// MetricEvent records usage reported by the agent, either per step or
// once for the whole session.
type MetricEvent struct {
	InputTokens      int64   `json:"input_tokens,omitempty"`
	OutputTokens     int64   `json:"output_tokens,omitempty"`
	ReasoningTokens  int64   `json:"reasoning_tokens,omitempty"`
	CacheReadTokens  int64   `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64   `json:"cache_write_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty"`
	TurnCount        int64   `json:"turn_count,omitempty"`

	// Status is the step finish reason or the session result subtype.
	Status string `json:"status,omitempty"`

	// Session is set when the values are totals for the whole session
	// rather than one step.
	Session bool `json:"session,omitempty"`
}

// ErrorEvent records an error.
type ErrorEvent struct {
	Message string `json:"message"`

	// Kind is the streamparse.ErrorKind for parser errors and empty for
	// errors the agent reported itself.
	Kind string `json:"kind,omitempty"`

	// Excerpt is the offending text for parser errors.
	Excerpt string `json:"excerpt,omitempty"`
}

// OutputEvent preserves a message that has no structured mapping.
type OutputEvent struct {
	Raw json.RawMessage `json:"raw"`
}

// messagePart is the "part" object agents nest their content in.
type messagePart struct {
	Text   string          `json:"text"`
	Tool   string          `json:"tool"`
	CallID string          `json:"callID"`
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	State  *struct {
		Status string          `json:"status"`
		Input  json.RawMessage `json:"input"`
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	} `json:"state"`
	Tokens *struct {
		Input     int64 `json:"input"`
		Output    int64 `json:"output"`
		Reasoning int64 `json:"reasoning"`
		Cache     struct {
			Read  int64 `json:"read"`
			Write int64 `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
	Cost   float64 `json:"cost"`
	Reason string  `json:"reason"`
}

// messageBody is the union of fields EventFromMessage reads. Fields a
// given message type does not carry stay zero.
type messageBody struct {
	Part messagePart `json:"part"`

	// Session result fields.
	Subtype      string  `json:"subtype"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   float64 `json:"duration_ms"`
	NumTurns     int64   `json:"num_turns"`
	Usage        *struct {
		InputTokens              int64 `json:"input_tokens"`
		OutputTokens             int64 `json:"output_tokens"`
		CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	} `json:"usage"`

	// Error fields: either a string message or an error object.
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// EventFromMessage maps a decoded stream message to a session event.
// Message types without a mapping, and payloads whose fields do not
// have the expected shape, become EventTypeOutput with the raw payload.
func EventFromMessage(timestamp time.Time, line int, message streamparse.Message) Event {
	event := Event{Timestamp: timestamp, Line: line}
	output := func() Event {
		event.Type = EventTypeOutput
		event.Output = &OutputEvent{Raw: message.Payload}
		return event
	}

	var body messageBody
	if err := message.Decode(&body); err != nil {
		return output()
	}
	part := body.Part

	switch message.Type {
	case "text":
		event.Type = EventTypeResponse
		event.Response = &ResponseEvent{Content: part.Text}

	case "reasoning":
		event.Type = EventTypeThinking
		event.Thinking = &ThinkingEvent{Content: part.Text}

	case "tool_call", "tool_use":
		input := part.Input
		if part.State != nil && len(part.State.Input) > 0 {
			input = part.State.Input
		}
		event.Type = EventTypeToolCall
		event.ToolCall = &ToolCallEvent{ID: part.CallID, Name: part.Tool, Input: input}

	case "tool_result":
		result := &ToolResultEvent{
			ID:      part.CallID,
			Output:  rawText(part.Output),
			IsError: part.Error != "",
		}
		if part.State != nil {
			if result.Output == "" {
				result.Output = rawText(part.State.Output)
			}
			result.IsError = result.IsError || part.State.Status == "error" || part.State.Error != ""
		}
		if result.Output == "" && part.Error != "" {
			result.Output = part.Error
		}
		event.Type = EventTypeToolResult
		event.ToolResult = result

	case "step_start":
		event.Type = EventTypeSystem
		event.System = &SystemEvent{Subtype: message.Type, Metadata: message.Payload}

	case "step_finish":
		metric := &MetricEvent{CostUSD: part.Cost, TurnCount: 1, Status: part.Reason}
		if part.Tokens != nil {
			metric.InputTokens = part.Tokens.Input
			metric.OutputTokens = part.Tokens.Output
			metric.ReasoningTokens = part.Tokens.Reasoning
			metric.CacheReadTokens = part.Tokens.Cache.Read
			metric.CacheWriteTokens = part.Tokens.Cache.Write
		}
		event.Type = EventTypeMetric
		event.Metric = metric

	case "result":
		metric := &MetricEvent{
			Session:         true,
			CostUSD:         body.TotalCostUSD,
			DurationSeconds: body.DurationMS / 1000,
			Status:          body.Subtype,
		}
		if body.Usage != nil {
			metric.InputTokens = body.Usage.InputTokens
			metric.OutputTokens = body.Usage.OutputTokens
			metric.CacheReadTokens = body.Usage.CacheReadInputTokens
			metric.CacheWriteTokens = body.Usage.CacheCreationInputTokens
		}
		metric.TurnCount = body.NumTurns
		event.Type = EventTypeMetric
		event.Metric = metric

	case "error":
		event.Type = EventTypeError
		event.Error = &ErrorEvent{Message: errorMessage(body)}

	default:
		return output()
	}
	return event
}

// EventFromParseError records a line the parser rejected.
func EventFromParseError(timestamp time.Time, line int, parseError *streamparse.ParseError) Event {
	return Event{
		Timestamp: timestamp,
		Type:      EventTypeError,
		Line:      line,
		Error: &ErrorEvent{
			Message: parseError.Error(),
			Kind:    string(parseError.Kind),
			Excerpt: parseError.Excerpt,
		},
	}
}

// rawText returns a JSON string value unquoted, and any other JSON
// value as its source text.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

// errorMessage finds the description in an error message, which agents
// report as {"message":...}, {"error":"..."}, {"error":{"message":...}},
// or {"error":{"data":{"message":...}}}.
func errorMessage(body messageBody) string {
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) == 0 {
		return "agent reported an error"
	}
	var nested struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body.Error, &nested); err != nil {
		return rawText(body.Error)
	}
	switch {
	case nested.Message != "":
		return nested.Message
	case nested.Data.Message != "":
		return nested.Data.Message
	case nested.Name != "":
		return nested.Name
	}
	return string(body.Error)
}
