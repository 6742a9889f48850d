package models

import (
	"strings"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

// JoinRequest is the body of POST /waitlist/join.
type JoinRequest struct {
	Email          string   `json:"email"`
	Name           string   `json:"name,omitempty"`
	Password       string   `json:"password,omitempty"`
	ReferralCode   string   `json:"referral_code,omitempty"`
	Interests      []string `json:"interests,omitempty"`
	TierPreference string   `json:"tier_preference,omitempty"`
}

func (r *JoinRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.ReferralCode = strings.ToUpper(strings.TrimSpace(r.ReferralCode))
	r.TierPreference = strings.ToLower(strings.TrimSpace(r.TierPreference))
	if r.TierPreference == "" {
		r.TierPreference = string(id.TierFree)
	}
}

// Validate checks shape only. A malformed referral code is not an error here:
// signup continues without attribution.
func (r *JoinRequest) Validate() error {
	if _, err := NormalizeEmail(r.Email); err != nil {
		return err
	}
	if _, err := NormalizeName(r.Name); err != nil {
		return err
	}
	if r.Password != "" {
		if err := ValidatePassword(r.Password); err != nil {
			return err
		}
	}
	if _, err := id.ParseTier(r.TierPreference); err != nil {
		return dErrors.New(dErrors.CodeValidation, "tier_preference must be one of free, pro, ai, family")
	}
	if _, err := NormalizeInterests(r.Interests); err != nil {
		return err
	}
	return nil
}

// JoinResult is what a signup returns. AlreadyRegistered is set when the email
// was on the list before this call.
type JoinResult struct {
	Registrant        *Registrant
	EffectivePosition int
	AlreadyRegistered bool
	Referred          bool
}

// Status is a registrant's view of their place in line.
type Status struct {
	RegistrantID      id.RegistrantID
	Email             string
	StoredPosition    int
	EffectivePosition int
	PeopleAhead       int
	ReferralCode      id.ReferralCode
	ReferralCount     int
	EmailVerified     bool
	IsPaying          bool
}
