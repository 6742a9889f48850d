package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lifenavigator/pkg/domain-errors"
)

const (
	iphoneSafari = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	macChrome    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	googlebot    = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	linuxFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

func TestClassifyUserAgent(t *testing.T) {
	tests := []struct {
		ua          string
		wantDevice  Device
		wantBrowser string
	}{
		{iphoneSafari, DeviceMobile, "Safari"},
		{macChrome, DeviceDesktop, "Chrome"},
		{linuxFirefox, DeviceDesktop, "Firefox"},
		{googlebot, DeviceBot, ""},
		{"", DeviceDesktop, "unknown"},
	}
	for _, tt := range tests {
		device, browser := ClassifyUserAgent(tt.ua)
		assert.Equal(t, tt.wantDevice, device, tt.ua)
		if tt.wantBrowser != "" {
			assert.Equal(t, tt.wantBrowser, browser, tt.ua)
		}
	}
}

func TestNewEventValidation(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := NewEvent("", EventPageView, "/", nil, nil, "", at)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewEvent("s1", EventType("purchase"), "/", nil, nil, "", at)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	e, err := NewEvent(" s1 ", EventSignup, "/join", nil, nil, macChrome, at)
	require.NoError(t, err)
	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, DeviceDesktop, e.Device)
	assert.NotNil(t, e.Properties)
}

func TestSummarize(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	mk := func(session string, typ EventType, ua string, at time.Time) *Event {
		e, err := NewEvent(session, typ, "/", nil, nil, ua, at)
		require.NoError(t, err)
		return e
	}
	events := []*Event{
		mk("a", EventPageView, macChrome, day1),
		mk("a", EventSignup, macChrome, day1.Add(time.Minute)),
		mk("b", EventPageView, iphoneSafari, day1.Add(time.Hour)),
		mk("b", EventConversion, iphoneSafari, day2),
		mk("c", EventPageView, macChrome, day2.Add(48*time.Hour)),
	}

	s := Summarize(events, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, Totals{Events: 4, UniqueSessions: 2, PageViews: 2, Signups: 1, Conversions: 1}, s.Totals)
	require.Len(t, s.Days, 2)
	assert.Equal(t, DayBucket{Date: "2026-03-01", Events: 3, Sessions: 2, PageViews: 2, Signups: 1}, s.Days[0])
	assert.Equal(t, DayBucket{Date: "2026-03-02", Events: 1, Sessions: 1}, s.Days[1])
	assert.Equal(t, map[Device]int{DeviceDesktop: 2, DeviceMobile: 2}, s.Devices)
}
