// Package models holds the admin dashboard, segment and campaign types.
package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

const (
	PreviewLimit = 20
	maxFilters   = 10
)

type Field string

const (
	FieldEmail          Field = "email"
	FieldName           Field = "name"
	FieldTierPreference Field = "tier_preference"
	FieldInterests      Field = "interests"
	FieldPosition       Field = "position"
	FieldReferralCount  Field = "referral_count"
	FieldEmailVerified  Field = "email_verified"
	FieldIsPaying       Field = "is_paying"
	FieldJoinedAt       Field = "joined_at"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater_than"
	OpContains    Operator = "contains"
)

// Kind is the value type a field compares against.
type Kind int

const (
	KindString Kind = iota
	KindTier
	KindSet
	KindInt
	KindBool
	KindTime
)

type fieldSpec struct {
	kind Kind
	ops  []Operator
}

var fields = map[Field]fieldSpec{
	FieldEmail:          {KindString, []Operator{OpEquals, OpContains}},
	FieldName:           {KindString, []Operator{OpEquals, OpContains}},
	FieldTierPreference: {KindTier, []Operator{OpEquals}},
	FieldInterests:      {KindSet, []Operator{OpContains}},
	FieldPosition:       {KindInt, []Operator{OpEquals, OpGreaterThan}},
	FieldReferralCount:  {KindInt, []Operator{OpEquals, OpGreaterThan}},
	FieldEmailVerified:  {KindBool, []Operator{OpEquals}},
	FieldIsPaying:       {KindBool, []Operator{OpEquals}},
	FieldJoinedAt:       {KindTime, []Operator{OpEquals, OpGreaterThan}},
}

// Filter is a segment condition as submitted by an admin.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Condition is a validated Filter with its value parsed to the field's kind.
type Condition struct {
	Field    Field
	Operator Operator
	Kind     Kind
	Str      string
	Int      int
	Bool     bool
	Time     time.Time
}

// Value returns the parsed value as a driver-friendly argument.
func (c Condition) Value() any {
	switch c.Kind {
	case KindInt:
		return c.Int
	case KindBool:
		return c.Bool
	case KindTime:
		return c.Time
	default:
		return c.Str
	}
}

// ParseFilters validates raw filters against the allow-listed fields.
//
// Errors: CodeValidation naming the offending filter.
func ParseFilters(raw []Filter) ([]Condition, error) {
	if len(raw) > maxFilters {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d filters allowed", maxFilters))
	}
	conds := make([]Condition, 0, len(raw))
	for i, f := range raw {
		c, err := parseFilter(f)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("filter %d: %s", i, dErrors.Message(err)))
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func parseFilter(f Filter) (Condition, error) {
	field := Field(strings.TrimSpace(f.Field))
	spec, ok := fields[field]
	if !ok {
		return Condition{}, dErrors.New(dErrors.CodeValidation, "unknown field "+strconv.Quote(f.Field))
	}
	op := Operator(strings.TrimSpace(f.Operator))
	if !slices.Contains(spec.ops, op) {
		return Condition{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("operator %q not allowed on %s", f.Operator, field))
	}
	c := Condition{Field: field, Operator: op, Kind: spec.kind}
	value := strings.TrimSpace(f.Value)

	switch spec.kind {
	case KindString, KindSet:
		if value == "" {
			return Condition{}, dErrors.New(dErrors.CodeValidation, "value is required")
		}
		c.Str = strings.ToLower(value)
	case KindTier:
		tier, err := id.ParseTier(strings.ToLower(value))
		if err != nil {
			return Condition{}, err
		}
		c.Str = tier.String()
	case KindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return Condition{}, dErrors.New(dErrors.CodeValidation, "value must be an integer")
		}
		c.Int = n
	case KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Condition{}, dErrors.New(dErrors.CodeValidation, "value must be true or false")
		}
		c.Bool = b
	case KindTime:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return Condition{}, dErrors.New(dErrors.CodeValidation, "value must be an RFC3339 timestamp")
		}
		c.Time = t.UTC()
	}
	return c, nil
}

// Matches evaluates the condition against a registrant. String comparisons
// are case-insensitive.
func (c Condition) Matches(r *wlmodels.Registrant) bool {
	switch c.Field {
	case FieldEmail:
		return matchString(c, r.Email)
	case FieldName:
		return matchString(c, r.Name)
	case FieldTierPreference:
		return r.TierPreference.String() == c.Str
	case FieldInterests:
		return slices.Contains(r.Interests, c.Str)
	case FieldPosition:
		return matchInt(c, r.Position)
	case FieldReferralCount:
		return matchInt(c, r.ReferralCount)
	case FieldEmailVerified:
		return r.EmailVerified == c.Bool
	case FieldIsPaying:
		return r.IsPaying == c.Bool
	case FieldJoinedAt:
		if c.Operator == OpGreaterThan {
			return r.JoinedAt.After(c.Time)
		}
		return r.JoinedAt.Equal(c.Time)
	}
	return false
}

// MatchesAll is the conjunction of conds; an empty segment matches everyone.
func MatchesAll(conds []Condition, r *wlmodels.Registrant) bool {
	for _, c := range conds {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}

func matchString(c Condition, v string) bool {
	v = strings.ToLower(v)
	if c.Operator == OpContains {
		return strings.Contains(v, c.Str)
	}
	return v == c.Str
}

func matchInt(c Condition, v int) bool {
	if c.Operator == OpGreaterThan {
		return v > c.Int
	}
	return v == c.Int
}

// Segment is a saved, named filter set.
type Segment struct {
	Slug      string
	Name      string
	Filters   []Filter
	CreatedAt time.Time
}

type Preview struct {
	Count  int
	Emails []string
}
