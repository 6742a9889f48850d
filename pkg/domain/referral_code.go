package domain

import (
	"crypto/rand"
	"math/big"
	"strings"

	dErrors "lifenavigator/pkg/domain-errors"
)

// ReferralCodeLength is the fixed length of generated referral codes.
const ReferralCodeLength = 8

// codeAlphabet omits characters that are easy to misread (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ReferralCode is a registrant's public, immutable referral code.
type ReferralCode string

// ParseReferralCode normalizes (trim, upper-case) and validates a code from
// external input. Codes are 8 characters from [A-Z0-9].
//
// Errors: CodeInvalidInput when the code is empty or malformed.
func ParseReferralCode(s string) (ReferralCode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "referral code cannot be empty")
	}
	if len(s) != ReferralCodeLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid referral code")
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid referral code")
		}
	}
	return ReferralCode(s), nil
}

// GenerateReferralCode returns a random code using crypto/rand.
func GenerateReferralCode() (ReferralCode, error) {
	var b strings.Builder
	b.Grow(ReferralCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate referral code")
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return ReferralCode(b.String()), nil
}

func (c ReferralCode) String() string {
	return string(c)
}
