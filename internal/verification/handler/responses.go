package handler

import (
	"time"

	"lifenavigator/internal/verification/models"
)

type StartResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

type VerificationResponse struct {
	Verified    bool       `json:"verified"`
	ServiceType string     `json:"service_type,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

func toVerificationResponse(v *models.ServiceVerification) *VerificationResponse {
	if v == nil {
		return &VerificationResponse{}
	}
	at := v.VerifiedAt
	return &VerificationResponse{
		Verified:    true,
		ServiceType: v.ServiceType.String(),
		Provider:    v.Provider,
		VerifiedAt:  &at,
	}
}
