package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

func TestPositionPolicy_Effective(t *testing.T) {
	p := PositionPolicy{Base: 100, Jump: 100}

	tests := []struct {
		name          string
		stored, count int
		want          int
	}{
		{"no referrals", 350, 0, 350},
		{"one referral", 350, 1, 250},
		{"lands exactly on one", 201, 2, 1},
		{"floors at one", 100, 1, 1},
		{"twenty referrals from the base", 100, 20, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Effective(tt.stored, tt.count))
		})
	}
}

func TestNewRegistrant_Invariants(t *testing.T) {
	now := time.Now()
	rid := id.NewRegistrantID()

	_, err := NewRegistrant(rid, "a@example.com", "", 0, "AB3XK9QZ", nil, id.TierFree, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewRegistrant(rid, "a@example.com", "", 100, "AB3XK9QZ", nil, id.Tier("gold"), "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	r, err := NewRegistrant(rid, "a@example.com", "Ada Lovelace", 100, "AB3XK9QZ", nil, id.TierPro, "", now)
	require.NoError(t, err)
	assert.Nil(t, r.ReferredBy)
	assert.Equal(t, []string{}, r.Interests)
	assert.Equal(t, "Ada", r.FirstName())
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Ada@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)

	for _, bad := range []string{"", "not-an-email", "ada@localhost", "Ada <ada@example.com>"} {
		_, err := NormalizeEmail(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), bad)
	}
}

func TestNormalizeInterests(t *testing.T) {
	got, err := NormalizeInterests([]string{" Budgeting", "budgeting", "", "Emergency Prep "})
	require.NoError(t, err)
	assert.Equal(t, []string{"budgeting", "emergency prep"}, got)

	many := make([]string, 21)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	_, err = NormalizeInterests(many)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
