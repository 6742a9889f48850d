package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lifenavigator/pkg/domain-errors"
)

// TestParseRegistrantID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseRegistrantID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRegistrantID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRegistrantID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRegistrantID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseRegistrantID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, RegistrantID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

// TestParseID_TrustBoundary covers hostile input arriving in path parameters.
func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE registrants;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errRegistrant := ParseRegistrantID(tt.input)
			_, errEntry := ParseLedgerEntryID(tt.input)
			_, errCredit := ParseCreditID(tt.input)
			if tt.wantErr {
				require.Error(t, errRegistrant)
				require.Error(t, errEntry)
				require.Error(t, errCredit)
				assert.True(t, dErrors.HasCode(errRegistrant, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, errRegistrant)
				require.NoError(t, errEntry)
				require.NoError(t, errCredit)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	for _, s := range []string{"free", "pro", "ai", "family"} {
		tier, err := ParseTier(s)
		require.NoError(t, err)
		assert.Equal(t, s, tier.String())
	}

	_, err := ParseTier("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = ParseTier("platinum")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.False(t, TierFree.IsPaid())
	assert.True(t, TierPro.IsPaid())
}

func TestReferralCode(t *testing.T) {
	t.Run("normalizes case and whitespace", func(t *testing.T) {
		code, err := ParseReferralCode("  ab3xk9qz ")
		require.NoError(t, err)
		assert.Equal(t, ReferralCode("AB3XK9QZ"), code)
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		for _, in := range []string{"", "SHORT", "TOOLONGCODE1", "AB-XK9QZ", "ÄB3XK9QZ"} {
			_, err := ParseReferralCode(in)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), in)
		}
	})

	t.Run("generated codes parse", func(t *testing.T) {
		seen := map[ReferralCode]bool{}
		for i := 0; i < 100; i++ {
			code, err := GenerateReferralCode()
			require.NoError(t, err)
			parsed, err := ParseReferralCode(code.String())
			require.NoError(t, err)
			assert.Equal(t, code, parsed)
			seen[code] = true
		}
		assert.Greater(t, len(seen), 90)
	})
}
