// Package models holds the payment webhook payload and its signature check.
package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	refmodels "lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

// SignaturePrefix precedes the hex HMAC in the X-Signature header.
const SignaturePrefix = "sha256="

// PaymentEvent is the body of POST /webhooks/payments.
type PaymentEvent struct {
	EventID string          `json:"event_id"`
	UserID  string          `json:"user_id"`
	Tier    string          `json:"tier"`
	Amount  decimal.Decimal `json:"amount"`
}

func (e *PaymentEvent) Normalize() {
	e.EventID = strings.TrimSpace(e.EventID)
	e.UserID = strings.TrimSpace(e.UserID)
	e.Tier = strings.ToLower(strings.TrimSpace(e.Tier))
}

// Conversion validates the event and converts it for the referral ledger.
func (e *PaymentEvent) Conversion() (refmodels.Conversion, error) {
	if e.EventID == "" {
		return refmodels.Conversion{}, dErrors.New(dErrors.CodeValidation, "event_id is required")
	}
	userID, err := id.ParseRegistrantID(e.UserID)
	if err != nil {
		return refmodels.Conversion{}, dErrors.Wrap(err, dErrors.CodeValidation, "user_id must be a registrant id")
	}
	tier, err := id.ParseTier(e.Tier)
	if err != nil {
		return refmodels.Conversion{}, dErrors.Wrap(err, dErrors.CodeValidation, "unknown tier")
	}
	conv := refmodels.Conversion{
		ReferredID: userID,
		Tier:       tier,
		Amount:     e.Amount,
		EventID:    e.EventID,
	}
	if err := conv.Validate(); err != nil {
		return refmodels.Conversion{}, err
	}
	return conv, nil
}

// Sign returns the X-Signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares header against the body's HMAC in constant time.
func VerifySignature(secret, body []byte, header string) error {
	header = strings.TrimSpace(header)
	if len(secret) == 0 || !strings.HasPrefix(header, SignaturePrefix) {
		return dErrors.New(dErrors.CodeUnauthorized, "missing or malformed signature")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, SignaturePrefix))
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "missing or malformed signature")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return dErrors.New(dErrors.CodeUnauthorized, "signature mismatch")
	}
	return nil
}
