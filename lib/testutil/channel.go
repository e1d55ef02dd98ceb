// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by agentstream tests.
//
// [RequireReceive] and [RequireClosed] wrap a channel wait in a
// wall-clock timeout so a broken goroutine fails the test instead of
// hanging it. They are the only place tests should touch time.After;
// everything else uses lib/clock.
package testutil

import (
	"fmt"
	"testing"
	"time"
)

// RequireReceive returns the next value from channel, failing the test
// if none arrives within timeout or the channel closes.
//
//	event := testutil.RequireReceive(t, events, 5*time.Second, "waiting for tool call")
func RequireReceive[T any](t testing.TB, channel <-chan T, timeout time.Duration, message ...any) T {
	t.Helper()
	select {
	case value, ok := <-channel:
		if !ok {
			t.Fatalf("channel closed: %s", describe(message))
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("no value after %v: %s", timeout, describe(message))
	}
	panic("unreachable")
}

// RequireClosed fails the test unless channel is closed (or delivers a
// value) within timeout.
func RequireClosed[T any](t testing.TB, channel <-chan T, timeout time.Duration, message ...any) {
	t.Helper()
	select {
	case <-channel:
	case <-time.After(timeout):
		t.Fatalf("channel still open after %v: %s", timeout, describe(message))
	}
}

// describe renders the optional trailing arguments: a plain string, or
// a format string followed by its operands.
func describe(message []any) string {
	switch {
	case len(message) == 0:
		return "(no message)"
	case len(message) == 1:
		return fmt.Sprint(message[0])
	}
	if format, ok := message[0].(string); ok {
		return fmt.Sprintf(format, message[1:]...)
	}
	return fmt.Sprint(message...)
}
