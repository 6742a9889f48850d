package handler

import (
	"time"

	"lifenavigator/internal/admin/models"
)

type OverviewResponse struct {
	Registrants     int `json:"registrants"`
	VerifiedEmails  int `json:"verified_emails"`
	Paying          int `json:"paying"`
	Referrals       int `json:"referrals"`
	Conversions     int `json:"conversions"`
	ActiveCredits   int `json:"active_credits"`
	ServiceVerified int `json:"service_verified"`
	Sessions30d     int `json:"sessions_30d"`
}

type PreviewResponse struct {
	Count  int      `json:"count"`
	Emails []string `json:"emails"`
}

type SegmentResponse struct {
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Filters   []models.Filter `json:"filters"`
	CreatedAt time.Time       `json:"created_at"`
}

type SegmentListResponse struct {
	Segments []*SegmentResponse `json:"segments"`
}

type CountResponse struct {
	Segment string `json:"segment"`
	Count   int    `json:"count"`
}

type CampaignResponse struct {
	Segment    string `json:"segment"`
	Recipients int    `json:"recipients"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
}

func toSegmentResponse(seg *models.Segment) *SegmentResponse {
	filters := seg.Filters
	if filters == nil {
		filters = []models.Filter{}
	}
	return &SegmentResponse{
		Slug:      seg.Slug,
		Name:      seg.Name,
		Filters:   filters,
		CreatedAt: seg.CreatedAt,
	}
}
