// Package retry implements the backoff utility referenced by spec.md's
// Design Notes. Its caller is the extractor's LLM fact-extraction call;
// the LLM clients and the embedding client do not use it.
package retry

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Policy parametrizes a retry loop: attempts, min/max delay, jitter
// fraction, and the predicates that decide whether and how long to
// wait before the next attempt.
type Policy struct {
	Attempts     int
	MinDelay     time.Duration
	MaxDelay     time.Duration
	Jitter       float64
	ShouldRetry  func(err error) bool
	RetryAfter   func(err error) (time.Duration, bool)
}

// Default implements spec.md §5's rate-limit policy: exponential
// backoff starting at 2s, capped at 60s, 10% jitter, up to 3 attempts.
func Default() Policy {
	return Policy{
		Attempts:    3,
		MinDelay:    2 * time.Second,
		MaxDelay:    60 * time.Second,
		Jitter:      0.10,
		ShouldRetry: IsRateLimited,
		RetryAfter:  ParseRetryAfter,
	}
}

var rateLimitPattern = regexp.MustCompile(`(?i)429|rate_limit|rate limit`)

// IsRateLimited detects the rate-limit markers spec.md §5 specifies.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	return rateLimitPattern.MatchString(err.Error())
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry-after\s+(\d+)\s*(s|sec|second|seconds|ms|millisecond|milliseconds|m|min|minute|minutes)?`)

// ParseRetryAfter extracts a "retry-after <n> <unit>" hint from an
// error message, when present (spec.md §5).
func ParseRetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	n, parseErr := strconv.Atoi(m[1])
	if parseErr != nil {
		return 0, false
	}
	unit := strings.ToLower(m[2])
	switch unit {
	case "ms", "millisecond", "milliseconds":
		return time.Duration(n) * time.Millisecond, true
	case "m", "min", "minute", "minutes":
		return time.Duration(n) * time.Minute, true
	default:
		return time.Duration(n) * time.Second, true
	}
}

// Do runs fn up to p.Attempts times, sleeping between attempts per the
// policy. It returns the last error if every attempt fails, or nil as
// soon as fn succeeds. ctx cancellation aborts the wait (but not a
// call to fn already in flight).
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var lastErr error
	delay := p.MinDelay
	for attempt := 0; attempt < p.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}

		wait := delay
		if p.RetryAfter != nil {
			if hint, ok := p.RetryAfter(lastErr); ok {
				wait = hint
			}
		}
		wait = jitter(wait, p.Jitter)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		return 0
	}
	return result
}
