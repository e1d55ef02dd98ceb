// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/agentstream/lib/streamparse"
)

// renderer prints parser outcomes. render is a streamparse.Listener;
// it cannot return an error, so the first write failure is kept for
// err.
type renderer interface {
	render(outcome streamparse.Outcome)
	err() error
}

func newRenderer(format string, w io.Writer) (renderer, error) {
	switch format {
	case "jsonl":
		return newJSONRenderer(w), nil
	case "pretty":
		return newPrettyRenderer(w, colorProfile(w)), nil
	case "auto", "":
		if isTerminal(w) {
			return newPrettyRenderer(w, colorProfile(w)), nil
		}
		return newJSONRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown --format %q (want jsonl, pretty, or auto)", format)
	}
}

// colorProfile disables styling when w is not a terminal.
func colorProfile(w io.Writer) termenv.Profile {
	if isTerminal(w) {
		return termenv.ANSI256
	}
	return termenv.Ascii
}

// outcomeRecord is the JSONL form of one outcome.
type outcomeRecord struct {
	// Line is zero for overflow errors, which belong to no line.
	Line int    `json:"line"`
	Kind string `json:"kind"`

	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Reason  string `json:"reason,omitempty"`
	Preview string `json:"preview,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Excerpt   string `json:"excerpt,omitempty"`
}

func recordFor(outcome streamparse.Outcome) outcomeRecord {
	record := outcomeRecord{Line: outcome.Line, Kind: outcome.Kind.String()}
	switch outcome.Kind {
	case streamparse.OutcomeMessage:
		record.Type = outcome.Message.Type
		record.Payload = outcome.Message.Payload
	case streamparse.OutcomeSkipped:
		record.Reason = string(outcome.Skip)
		record.Preview = outcome.Preview
	case streamparse.OutcomeError:
		record.ErrorKind = string(outcome.Err.Kind)
		record.Reason = outcome.Err.Reason
		record.Excerpt = outcome.Err.Excerpt
	}
	return record
}

type jsonRenderer struct {
	encoder  *json.Encoder
	firstErr error
}

func newJSONRenderer(w io.Writer) *jsonRenderer {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return &jsonRenderer{encoder: encoder}
}

func (renderer *jsonRenderer) render(outcome streamparse.Outcome) {
	if renderer.firstErr != nil {
		return
	}
	renderer.firstErr = renderer.encoder.Encode(recordFor(outcome))
}

func (renderer *jsonRenderer) err() error { return renderer.firstErr }

// detailWidth caps the payload or preview shown per pretty line.
const detailWidth = 120

type prettyRenderer struct {
	out      io.Writer
	firstErr error

	lineStyle    lipgloss.Style
	messageStyle lipgloss.Style
	skipStyle    lipgloss.Style
	errorStyle   lipgloss.Style
}

func newPrettyRenderer(w io.Writer, profile termenv.Profile) *prettyRenderer {
	// lipgloss re-detects the profile from the output unless it is set
	// explicitly.
	lipRenderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	lipRenderer.SetColorProfile(profile)
	return &prettyRenderer{
		out:          w,
		lineStyle:    lipRenderer.NewStyle().Foreground(lipgloss.Color("8")),
		messageStyle: lipRenderer.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		skipStyle:    lipRenderer.NewStyle().Faint(true),
		errorStyle:   lipRenderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

func (renderer *prettyRenderer) render(outcome streamparse.Outcome) {
	if renderer.firstErr != nil {
		return
	}

	line := "-"
	if outcome.Line > 0 {
		line = strconv.Itoa(outcome.Line)
	}
	var label, detail string
	switch outcome.Kind {
	case streamparse.OutcomeMessage:
		label = renderer.messageStyle.Render(fmt.Sprintf("%-8s", outcome.Message.Type))
		detail = ansi.Truncate(string(outcome.Message.Payload), detailWidth, "…")
	case streamparse.OutcomeSkipped:
		label = renderer.skipStyle.Render(fmt.Sprintf("%-8s", "skip"))
		detail = renderer.skipStyle.Render(string(outcome.Skip) + "  " + outcome.Preview)
	case streamparse.OutcomeError:
		label = renderer.errorStyle.Render(fmt.Sprintf("%-8s", string(outcome.Err.Kind)))
		detail = ansi.Truncate(outcome.Err.Error(), detailWidth, "…")
	}
	_, renderer.firstErr = fmt.Fprintf(renderer.out, "%s  %s  %s\n",
		renderer.lineStyle.Render(fmt.Sprintf("%6s", line)), label, detail)
}

func (renderer *prettyRenderer) err() error { return renderer.firstErr }
