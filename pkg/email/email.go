// Package email normalizes registrant addresses and derives greeting names from them.
package email

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

// MaxLength is the longest address accepted, per RFC 5321.
const MaxLength = 254

var (
	ErrEmpty   = errors.New("email is empty")
	ErrTooLong = errors.New("email is too long")
	ErrInvalid = errors.New("email is invalid")
)

// Normalize trims and lower-cases raw, then requires a bare addr-spec whose
// domain has at least one dot. Display-name forms like "Ada <ada@x.io>" are rejected.
func Normalize(raw string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if addr == "" {
		return "", ErrEmpty
	}
	if len(addr) > MaxLength {
		return "", ErrTooLong
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", ErrInvalid
	}
	if !strings.Contains(Domain(addr), ".") {
		return "", ErrInvalid
	}
	return addr, nil
}

// Domain returns the part after the last '@', or "" when there is none.
func Domain(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return ""
	}
	return addr[at+1:]
}

// GreetingName picks the name used to open an email: the first word of the
// registrant's name, else a capitalized guess from the local part, else "there".
func GreetingName(name, addr string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	local := addr
	if at := strings.IndexByte(addr, '@'); at >= 0 {
		local = addr[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return "there"
	}
	runes := []rune(parts[0])
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
