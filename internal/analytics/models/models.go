// Package models holds product analytics events and their rollups.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

type EventType string

const (
	EventPageView      EventType = "page_view"
	EventSignup        EventType = "signup"
	EventConversion    EventType = "conversion"
	EventReferralClick EventType = "referral_click"
	EventCTAClick      EventType = "cta_click"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventPageView, EventSignup, EventConversion, EventReferralClick, EventCTAClick:
		return true
	}
	return false
}

type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceDesktop Device = "desktop"
	DeviceBot     Device = "bot"
)

const (
	maxSessionIDLen  = 128
	maxPathLen       = 512
	maxPropertyCount = 20
)

// Event is one tracked interaction. RegistrantID is nil for anonymous visitors.
type Event struct {
	ID           uuid.UUID
	SessionID    string
	RegistrantID *id.RegistrantID
	Type         EventType
	Path         string
	Device       Device
	Browser      string
	Properties   map[string]string
	OccurredAt   time.Time
}

// NewEvent validates input and classifies the user agent.
func NewEvent(sessionID string, typ EventType, path string, registrantID *id.RegistrantID, props map[string]string, userAgent string, at time.Time) (*Event, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLen {
		return nil, dErrors.New(dErrors.CodeValidation, "session_id is required")
	}
	if !typ.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported event type")
	}
	if len(path) > maxPathLen {
		path = path[:maxPathLen]
	}
	if len(props) > maxPropertyCount {
		return nil, dErrors.New(dErrors.CodeValidation, "too many properties")
	}
	if props == nil {
		props = map[string]string{}
	}
	device, browser := ClassifyUserAgent(userAgent)
	return &Event{
		ID:           uuid.New(),
		SessionID:    sessionID,
		RegistrantID: registrantID,
		Type:         typ,
		Path:         path,
		Device:       device,
		Browser:      browser,
		Properties:   props,
		OccurredAt:   at.UTC(),
	}, nil
}

// ClassifyUserAgent returns the device class and browser family.
func ClassifyUserAgent(raw string) (Device, string) {
	if strings.TrimSpace(raw) == "" {
		return DeviceDesktop, "unknown"
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	if name == "" {
		name = "unknown"
	}
	switch {
	case ua.Bot():
		return DeviceBot, name
	case ua.Mobile():
		return DeviceMobile, name
	default:
		return DeviceDesktop, name
	}
}

type Totals struct {
	Events         int
	UniqueSessions int
	PageViews      int
	Signups        int
	Conversions    int
}

type DayBucket struct {
	Date      string
	Events    int
	Sessions  int
	PageViews int
	Signups   int
}

type Summary struct {
	From    time.Time
	To      time.Time
	Totals  Totals
	Days    []DayBucket
	Devices map[Device]int
}

// Summarize rolls events in [from, to) up by UTC day. Days without events are included.
func Summarize(events []*Event, from, to time.Time) *Summary {
	from, to = from.UTC(), to.UTC()
	s := &Summary{From: from, To: to, Devices: map[Device]int{}}

	sessions := map[string]bool{}
	daySessions := map[string]map[string]bool{}
	buckets := map[string]*DayBucket{}
	for day := truncateDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		buckets[key] = &DayBucket{Date: key}
		s.Days = append(s.Days, DayBucket{Date: key})
		daySessions[key] = map[string]bool{}
	}

	for _, e := range events {
		if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}
		key := e.OccurredAt.UTC().Format(time.DateOnly)
		b, ok := buckets[key]
		if !ok {
			continue
		}
		s.Totals.Events++
		b.Events++
		sessions[e.SessionID] = true
		daySessions[key][e.SessionID] = true
		s.Devices[e.Device]++
		switch e.Type {
		case EventPageView:
			s.Totals.PageViews++
			b.PageViews++
		case EventSignup:
			s.Totals.Signups++
			b.Signups++
		case EventConversion:
			s.Totals.Conversions++
		}
	}
	s.Totals.UniqueSessions = len(sessions)
	for i := range s.Days {
		key := s.Days[i].Date
		s.Days[i] = *buckets[key]
		s.Days[i].Sessions = len(daySessions[key])
	}
	return s
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
