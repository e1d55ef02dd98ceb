// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code injects
// Real(); tests inject Fake() and move time explicitly.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of the time package used by agentstream: event
// and transcript timestamps, and the interrupt-to-kill escalation
// timer.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Fake returns a FakeClock stopped at initial. It is safe for
// concurrent use.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a Clock whose time only moves when Advance is called.
type FakeClock struct {
	mutex   sync.Mutex
	current time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Now returns the fake current time.
func (clock *FakeClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

// After registers a waiter that fires when Advance reaches its
// deadline.
func (clock *FakeClock) After(d time.Duration) <-chan time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- clock.current
		return channel
	}
	clock.waiters = append(clock.waiters, fakeWaiter{
		deadline: clock.current.Add(d),
		channel:  channel,
	})
	return channel
}

// Advance moves time forward by d and fires every waiter whose deadline
// has been reached.
func (clock *FakeClock) Advance(d time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.current = clock.current.Add(d)
	pending := clock.waiters[:0]
	for _, waiter := range clock.waiters {
		if waiter.deadline.After(clock.current) {
			pending = append(pending, waiter)
			continue
		}
		waiter.channel <- clock.current
	}
	clock.waiters = pending
}

// PendingCount returns the number of waiters that have not fired.
// Tests use it to wait until a goroutine has armed its timer.
func (clock *FakeClock) PendingCount() int {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return len(clock.waiters)
}
