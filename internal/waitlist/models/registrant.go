package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/email"
	"lifenavigator/pkg/platform/sentinel"
	pkgstrings "lifenavigator/pkg/platform/strings"
)

// Store-level conflicts. Each wraps sentinel.ErrConflict so callers that only
// care about "some uniqueness constraint fired" can test for that.
var (
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	ErrPositionTaken = fmt.Errorf("position already assigned: %w", sentinel.ErrConflict)
	ErrCodeTaken     = fmt.Errorf("referral code already assigned: %w", sentinel.ErrConflict)
)

// ErrAllocationRace reports that a concurrent signup claimed the position or
// code chosen for this one. Join retries internally and never surfaces it.
var ErrAllocationRace = dErrors.New(dErrors.CodeConflict, "position allocation raced with a concurrent signup")

const (
	maxInterests     = 20
	maxInterestLen   = 40
	maxNameLen       = 120
	MinPasswordLen   = 8
	maxPasswordBytes = 72
)

// Registrant is one person on the waitlist.
type Registrant struct {
	ID             id.RegistrantID
	Email          string
	Name           string
	PasswordHash   string
	Position       int
	ReferralCode   id.ReferralCode
	ReferredBy     *id.RegistrantID
	ReferralCount  int
	Interests      []string
	TierPreference id.Tier
	EmailVerified  bool
	IsPaying       bool
	JoinedAt       time.Time
	LastLogin      *time.Time
}

// NewRegistrant builds a registrant with a stored position and code. Invariants:
// position > 0, email present, tier valid, no referrer yet.
func NewRegistrant(registrantID id.RegistrantID, email, name string, position int, code id.ReferralCode, interests []string, tier id.Tier, passwordHash string, joinedAt time.Time) (*Registrant, error) {
	if registrantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registrant id required")
	}
	if position <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "position must be positive")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email required")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "referral code required")
	}
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid tier preference")
	}
	if interests == nil {
		interests = []string{}
	}
	return &Registrant{
		ID:             registrantID,
		Email:          email,
		Name:           name,
		PasswordHash:   passwordHash,
		Position:       position,
		ReferralCode:   code,
		Interests:      interests,
		TierPreference: tier,
		JoinedAt:       joinedAt,
	}, nil
}

// FirstName is the greeting name used in emails and the public code check.
func (r *Registrant) FirstName() string {
	if f := strings.Fields(r.Name); len(f) > 0 {
		return f[0]
	}
	return ""
}

// PositionPolicy turns a stored position and referral count into the position
// shown to the registrant.
type PositionPolicy struct {
	Base int
	Jump int
}

// Effective returns max(1, stored - jump*referralCount).
func (p PositionPolicy) Effective(stored, referralCount int) int {
	eff := stored - p.Jump*referralCount
	if eff < 1 {
		return 1
	}
	return eff
}

// NormalizeEmail trims and lower-cases an email and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	addr, err := email.Normalize(raw)
	switch {
	case errors.Is(err, email.ErrEmpty):
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	case errors.Is(err, email.ErrTooLong):
		return "", dErrors.New(dErrors.CodeValidation, "email is too long")
	case err != nil:
		return "", dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return addr, nil
}

// NormalizeInterests lower-cases, space-collapses and dedupes interest tags.
func NormalizeInterests(raw []string) ([]string, error) {
	interests := pkgstrings.NormalizeTags(raw)
	if len(interests) > maxInterests {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d interests allowed", maxInterests))
	}
	for _, in := range interests {
		if len(in) > maxInterestLen {
			return nil, dErrors.New(dErrors.CodeValidation, "interest tag is too long")
		}
	}
	if interests == nil {
		interests = []string{}
	}
	return interests, nil
}

// NormalizeName trims a display name and bounds its length.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) > maxNameLen {
		return "", dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	return name, nil
}

// ValidatePassword checks bcrypt-compatible password bounds.
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLen {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}
	if len(pw) > maxPasswordBytes {
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	return nil
}

// ListFilter pages through registrants for the admin views.
type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Query = strings.ToLower(strings.TrimSpace(f.Query))
	return f
}
