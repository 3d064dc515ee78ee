package models

import (
	"strings"
	"time"
)

// RateLimitResult is the outcome of one bucket check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// NewIPKey builds the bucket key for a client address and route scope.
func NewIPKey(scope, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "ratelimit:" + scope + ":ip:" + strings.ReplaceAll(ip, ":", "_")
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never
// below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
