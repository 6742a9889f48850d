// Package models defines rate limit classes, rules and results.
package models

import "time"

// Class groups endpoints that share a limit.
type Class string

const (
	ClassJoin  Class = "join"
	ClassLogin Class = "login"
)

// Rule is a sliding-window budget: at most Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when not allowed
	Degraded   bool
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, minimum 1.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
