// Package domain holds the typed identifiers and primitives shared across modules.
//
// Construct values with the Parse* functions at trust boundaries; direct
// conversions bypass validation and belong only in stores and tests.
package domain

import (
	"github.com/google/uuid"

	dErrors "lifenavigator/pkg/domain-errors"
)

type (
	RegistrantID  uuid.UUID
	LedgerEntryID uuid.UUID
	CreditID      uuid.UUID
)

func NewRegistrantID() RegistrantID   { return RegistrantID(uuid.New()) }
func NewLedgerEntryID() LedgerEntryID { return LedgerEntryID(uuid.New()) }
func NewCreditID() CreditID           { return CreditID(uuid.New()) }

func (id RegistrantID) String() string  { return uuid.UUID(id).String() }
func (id LedgerEntryID) String() string { return uuid.UUID(id).String() }
func (id CreditID) String() string      { return uuid.UUID(id).String() }

func (id RegistrantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id LedgerEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CreditID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// ParseRegistrantID parses a registrant identifier from external input.
//
// Errors: CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseRegistrantID(s string) (RegistrantID, error) {
	u, err := parseUUID(s, "registrant id")
	return RegistrantID(u), err
}

func ParseLedgerEntryID(s string) (LedgerEntryID, error) {
	u, err := parseUUID(s, "ledger entry id")
	return LedgerEntryID(u), err
}

func ParseCreditID(s string) (CreditID, error) {
	u, err := parseUUID(s, "credit id")
	return CreditID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
