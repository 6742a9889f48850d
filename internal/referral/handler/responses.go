package handler

import (
	"time"

	"lifenavigator/internal/referral/models"
)

type CreditResponse struct {
	ID                 string     `json:"id"`
	Amount             string     `json:"credit_amount"`
	ReferralBatchCount int        `json:"referral_batch_count"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	Used               bool       `json:"used"`
	UsedAt             *time.Time `json:"used_at,omitempty"`
}

type StatsResponse struct {
	ReferralCode       string           `json:"referral_code"`
	ReferralLink       string           `json:"referral_link"`
	TotalReferrals     int              `json:"total_referrals"`
	Converted          int              `json:"converted_referrals"`
	Credited           int              `json:"credited_referrals"`
	PendingTowardNext  int              `json:"pending_toward_next_credit"`
	RequiredForBenefit int              `json:"required_for_benefit"`
	Position           int              `json:"position"`
	EffectivePosition  int              `json:"effective_position"`
	ActiveCredits      []CreditResponse `json:"active_credits"`
	ActiveCreditTotal  string           `json:"active_credit_total"`
}

type LinkResponse struct {
	Link string `json:"referral_link"`
}

type AccrueResponse struct {
	Credits []CreditResponse `json:"credits"`
}

type ReconcileResponse struct {
	Referrers int `json:"referrers"`
	Credits   int `json:"credits_minted"`
	Failures  int `json:"failures"`
}

type ExpireResponse struct {
	Expired int `json:"expired"`
}

func toCreditResponse(c *models.Credit) *CreditResponse {
	return &CreditResponse{
		ID:                 c.ID.String(),
		Amount:             c.Amount.StringFixed(2),
		ReferralBatchCount: c.BatchCount,
		CreatedAt:          c.CreatedAt,
		ExpiresAt:          c.ExpiresAt,
		Used:               c.Used,
		UsedAt:             c.UsedAt,
	}
}

func toStatsResponse(s *models.Stats) *StatsResponse {
	resp := &StatsResponse{
		ReferralCode:       s.ReferralCode.String(),
		ReferralLink:       s.ReferralLink,
		TotalReferrals:     s.TotalReferrals,
		Converted:          s.Converted,
		Credited:           s.Credited,
		PendingTowardNext:  s.PendingTowardNext,
		RequiredForBenefit: s.RequiredForBenefit,
		Position:           s.StoredPosition,
		EffectivePosition:  s.EffectivePosition,
		ActiveCredits:      make([]CreditResponse, 0, len(s.ActiveCredits)),
		ActiveCreditTotal:  s.ActiveCreditTotal.StringFixed(2),
	}
	for _, c := range s.ActiveCredits {
		resp.ActiveCredits = append(resp.ActiveCredits, *toCreditResponse(c))
	}
	return resp
}
