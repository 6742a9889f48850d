package models

import "strings"

// SanitizeKeySegment escapes the key delimiter so a crafted identifier cannot
// address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPKey is the bucket key for one client IP within a class.
func NewIPKey(class Class, ip string) string {
	return "ratelimit:" + string(class) + ":ip:" + SanitizeKeySegment(ip)
}
