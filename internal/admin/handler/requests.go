package handler

import (
	"strings"

	"lifenavigator/internal/admin/models"
	dErrors "lifenavigator/pkg/domain-errors"
)

type PreviewRequest struct {
	Filters []models.Filter `json:"filters"`
}

func (r *PreviewRequest) Validate() error {
	return nil
}

type SaveSegmentRequest struct {
	Name    string          `json:"name"`
	Filters []models.Filter `json:"filters"`
}

func (r *SaveSegmentRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *SaveSegmentRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type CampaignRequest struct {
	Segment string `json:"segment"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r *CampaignRequest) Normalize() {
	r.Segment = strings.TrimSpace(r.Segment)
	r.Subject = strings.TrimSpace(r.Subject)
}

func (r *CampaignRequest) Validate() error {
	if r.Segment == "" {
		return dErrors.New(dErrors.CodeValidation, "segment is required")
	}
	return nil
}
