// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rule is a named limit, e.g. 5 requests per minute for "convert".
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// String formats the rule the way it is reported to clients.
func (r Rule) String() string {
	if r.Window == time.Minute {
		return fmt.Sprintf("%d per 1 minute", r.Limit)
	}
	return fmt.Sprintf("%d per %s", r.Limit, r.Window)
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether one more request for key fits into rule.
type Limiter interface {
	Allow(ctx context.Context, rule Rule, key string) (Result, error)
}

// windowStart returns the start of the fixed window containing now.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func result(count int64, rule Rule, now time.Time) Result {
	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: count <= int64(rule.Limit), Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = windowStart(now, rule.Window).Add(rule.Window).Sub(now)
	}
	return res
}
