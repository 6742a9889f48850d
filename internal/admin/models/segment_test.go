package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

func TestParseFilters(t *testing.T) {
	conds, err := ParseFilters([]Filter{
		{Field: "email", Operator: "contains", Value: " @Example.COM "},
		{Field: "referral_count", Operator: "greater_than", Value: "2"},
		{Field: "is_paying", Operator: "equals", Value: "true"},
		{Field: "joined_at", Operator: "greater_than", Value: "2026-01-01T00:00:00+02:00"},
		{Field: "tier_preference", Operator: "equals", Value: "PRO"},
	})
	require.NoError(t, err)
	require.Len(t, conds, 5)

	assert.Equal(t, "@example.com", conds[0].Str)
	assert.Equal(t, 2, conds[1].Int)
	assert.True(t, conds[2].Bool)
	assert.Equal(t, time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC), conds[3].Time)
	assert.Equal(t, "pro", conds[4].Str)
}

func TestParseFiltersRejects(t *testing.T) {
	cases := map[string]Filter{
		"unknown field":         {Field: "password_hash", Operator: "equals", Value: "x"},
		"operator not allowed":  {Field: "interests", Operator: "equals", Value: "finance"},
		"greater than a string": {Field: "email", Operator: "greater_than", Value: "a"},
		"bad int":               {Field: "position", Operator: "equals", Value: "first"},
		"bad bool":              {Field: "email_verified", Operator: "equals", Value: "yes please"},
		"bad time":              {Field: "joined_at", Operator: "equals", Value: "yesterday"},
		"bad tier":              {Field: "tier_preference", Operator: "equals", Value: "platinum"},
		"empty string":          {Field: "name", Operator: "contains", Value: "  "},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilters([]Filter{f})
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestMatchesAll(t *testing.T) {
	joined := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	r, err := wlmodels.NewRegistrant(id.NewRegistrantID(), "ana@example.com", "Ana Lima", 140,
		id.ReferralCode("ABCDEFGH"), []string{"finance", "travel"}, id.TierPro, "", joined)
	require.NoError(t, err)
	r.ReferralCount = 3

	parse := func(fs ...Filter) []Condition {
		conds, err := ParseFilters(fs)
		require.NoError(t, err)
		return conds
	}

	assert.True(t, MatchesAll(nil, r))
	assert.True(t, MatchesAll(parse(
		Filter{Field: "name", Operator: "contains", Value: "ANA"},
		Filter{Field: "interests", Operator: "contains", Value: "Travel"},
		Filter{Field: "referral_count", Operator: "greater_than", Value: "2"},
		Filter{Field: "tier_preference", Operator: "equals", Value: "pro"},
		Filter{Field: "joined_at", Operator: "equals", Value: "2026-02-01T00:00:00Z"},
		Filter{Field: "email_verified", Operator: "equals", Value: "false"},
	), r))
	assert.False(t, MatchesAll(parse(
		Filter{Field: "position", Operator: "greater_than", Value: "140"},
	), r))
	assert.False(t, MatchesAll(parse(
		Filter{Field: "email", Operator: "equals", Value: "ana@example"},
	), r))
}
