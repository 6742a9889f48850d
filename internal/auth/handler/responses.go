package handler

import "time"

type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RegistrantID string    `json:"registrant_id"`
}

type VerifyEmailResponse struct {
	RegistrantID  string `json:"registrant_id"`
	EmailVerified bool   `json:"email_verified"`
}
