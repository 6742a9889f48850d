package handler

import (
	"strings"

	dErrors "lifenavigator/pkg/domain-errors"
)

// CallbackRequest carries the query parameters ID.me appended to the redirect.
type CallbackRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

func (r *CallbackRequest) Normalize() {
	r.State = strings.TrimSpace(r.State)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *CallbackRequest) Validate() error {
	if r.State == "" {
		return dErrors.New(dErrors.CodeValidation, "state is required")
	}
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	return nil
}
