package model

import (
	"fmt"
	"strconv"
)

type retryMode int

const (
	retryOff retryMode = iota
	retryBounded
	retryUnbounded
)

// RetryPolicy decides whether a failed task may be attempted again.
//
// It is a tagged variant rather than a sentinel integer so the
// orchestrator's single decision point (Allows) never has to interpret
// magic values:
//
//	model.NoRetry()    // every failure is terminal
//	model.Bounded(3)   // at most 3 attempts per task
//	model.Unbounded()  // retry until success or cancellation
type RetryPolicy struct {
	mode  retryMode
	limit int
}

// NoRetry returns the policy where any failure is terminal.
// This is the default.
func NoRetry() RetryPolicy {
	return RetryPolicy{mode: retryOff}
}

// Bounded returns a policy allowing at most n attempts per task
// (the initial attempt counts). Values below 1 are clamped to 1.
func Bounded(n int) RetryPolicy {
	if n < 1 {
		n = 1
	}
	return RetryPolicy{mode: retryBounded, limit: n}
}

// Unbounded returns a policy that retries failed tasks until they
// succeed or the run is cancelled. A task that can never succeed will
// retry forever; the operator opts into that explicitly.
func Unbounded() RetryPolicy {
	return RetryPolicy{mode: retryUnbounded}
}

// RetryFromFlag maps the CLI retry value to a policy:
// -1 is unbounded, 0 disables retry, positive n bounds total attempts.
func RetryFromFlag(n int) (RetryPolicy, error) {
	switch {
	case n == -1:
		return Unbounded(), nil
	case n == 0:
		return NoRetry(), nil
	case n > 0:
		return Bounded(n), nil
	default:
		return RetryPolicy{}, fmt.Errorf("retry must be -1 (unlimited), 0 (disabled) or positive, got %d", n)
	}
}

// Allows reports whether another attempt may be scheduled for a task
// that has already completed the given number of failed attempts.
func (p RetryPolicy) Allows(attempts int) bool {
	switch p.mode {
	case retryBounded:
		return attempts < p.limit
	case retryUnbounded:
		return true
	default:
		return false
	}
}

// Enabled reports whether the policy permits any retry at all.
func (p RetryPolicy) Enabled() bool {
	return p.mode != retryOff
}

// String describes the policy for logs and summaries.
func (p RetryPolicy) String() string {
	switch p.mode {
	case retryBounded:
		return strconv.Itoa(p.limit) + " attempts"
	case retryUnbounded:
		return "unlimited"
	default:
		return "off"
	}
}
