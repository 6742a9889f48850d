package handler

import (
	"time"

	"lifenavigator/internal/waitlist/models"
)

type JoinResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Position          int    `json:"position"`
	EffectivePosition int    `json:"effective_position"`
	ReferralCode      string `json:"referral_code"`
	AlreadyRegistered bool   `json:"already_registered"`
	Referred          bool   `json:"referred"`
}

type CodeCheckResponse struct {
	Valid             bool   `json:"valid"`
	ReferrerFirstName string `json:"referrer_first_name,omitempty"`
}

type StatusResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Position          int    `json:"position"`
	EffectivePosition int    `json:"effective_position"`
	PeopleAhead       int    `json:"people_ahead"`
	ReferralCode      string `json:"referral_code"`
	ReferralCount     int    `json:"referral_count"`
	EmailVerified     bool   `json:"email_verified"`
	IsPaying          bool   `json:"is_paying"`
}

type RegistrantResponse struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name,omitempty"`
	Position          int        `json:"position"`
	EffectivePosition int        `json:"effective_position"`
	ReferralCode      string     `json:"referral_code"`
	ReferredBy        string     `json:"referred_by,omitempty"`
	ReferralCount     int        `json:"referral_count"`
	Interests         []string   `json:"interests"`
	TierPreference    string     `json:"tier_preference"`
	EmailVerified     bool       `json:"email_verified"`
	IsPaying          bool       `json:"is_paying"`
	JoinedAt          time.Time  `json:"joined_at"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
}

type ListResponse struct {
	Registrants []RegistrantResponse `json:"registrants"`
	Total       int                  `json:"total"`
}

func toStatusResponse(s *models.Status) *StatusResponse {
	return &StatusResponse{
		ID:                s.RegistrantID.String(),
		Email:             s.Email,
		Position:          s.StoredPosition,
		EffectivePosition: s.EffectivePosition,
		PeopleAhead:       s.PeopleAhead,
		ReferralCode:      s.ReferralCode.String(),
		ReferralCount:     s.ReferralCount,
		EmailVerified:     s.EmailVerified,
		IsPaying:          s.IsPaying,
	}
}

func toRegistrantResponse(r *models.Registrant, effective int) RegistrantResponse {
	resp := RegistrantResponse{
		ID:                r.ID.String(),
		Email:             r.Email,
		Name:              r.Name,
		Position:          r.Position,
		EffectivePosition: effective,
		ReferralCode:      r.ReferralCode.String(),
		ReferralCount:     r.ReferralCount,
		Interests:         r.Interests,
		TierPreference:    r.TierPreference.String(),
		EmailVerified:     r.EmailVerified,
		IsPaying:          r.IsPaying,
		JoinedAt:          r.JoinedAt,
		LastLogin:         r.LastLogin,
	}
	if r.ReferredBy != nil {
		resp.ReferredBy = r.ReferredBy.String()
	}
	return resp
}
