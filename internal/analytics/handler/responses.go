package handler

import (
	"time"

	"lifenavigator/internal/analytics/models"
)

type TotalsResponse struct {
	Events         int `json:"events"`
	UniqueSessions int `json:"unique_sessions"`
	PageViews      int `json:"page_views"`
	Signups        int `json:"signups"`
	Conversions    int `json:"conversions"`
}

type DayResponse struct {
	Date      string `json:"date"`
	Events    int    `json:"events"`
	Sessions  int    `json:"sessions"`
	PageViews int    `json:"page_views"`
	Signups   int    `json:"signups"`
}

type SummaryResponse struct {
	From    time.Time      `json:"from"`
	To      time.Time      `json:"to"`
	Totals  TotalsResponse `json:"totals"`
	Days    []DayResponse  `json:"days"`
	Devices map[string]int `json:"devices"`
}

func toSummaryResponse(s *models.Summary) *SummaryResponse {
	resp := &SummaryResponse{
		From: s.From,
		To:   s.To,
		Totals: TotalsResponse{
			Events:         s.Totals.Events,
			UniqueSessions: s.Totals.UniqueSessions,
			PageViews:      s.Totals.PageViews,
			Signups:        s.Totals.Signups,
			Conversions:    s.Totals.Conversions,
		},
		Days:    make([]DayResponse, 0, len(s.Days)),
		Devices: make(map[string]int, len(s.Devices)),
	}
	for _, d := range s.Days {
		resp.Days = append(resp.Days, DayResponse(d))
	}
	for device, n := range s.Devices {
		resp.Devices[string(device)] = n
	}
	return resp
}
