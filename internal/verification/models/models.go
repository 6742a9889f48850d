// Package models holds service verification records and the OAuth state that
// binds an ID.me round trip to one registrant.
package models

import (
	"strings"
	"time"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

// ServiceType is the attested eligibility category.
type ServiceType string

const (
	ServiceVeteran        ServiceType = "veteran"
	ServiceMilitary       ServiceType = "military"
	ServiceLawEnforcement ServiceType = "law_enforcement"
	ServiceFirstResponder ServiceType = "first_responder"
	ServiceTeacher        ServiceType = "teacher"
)

// ProviderIDMe names the only supported verification provider.
const ProviderIDMe = "idme"

var (
	ErrAlreadyVerified = dErrors.New(dErrors.CodeConflict, "service membership already verified")
	ErrNotEligible     = dErrors.New(dErrors.CodeForbidden, "no eligible service group was verified")
	ErrInvalidState    = dErrors.New(dErrors.CodeBadRequest, "verification state is invalid or expired")
)

func (t ServiceType) String() string {
	return string(t)
}

func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceVeteran, ServiceMilitary, ServiceLawEnforcement, ServiceFirstResponder, ServiceTeacher:
		return true
	}
	return false
}

// ServiceVerification is terminal: once stored it is never re-checked.
type ServiceVerification struct {
	RegistrantID id.RegistrantID
	ServiceType  ServiceType
	Provider     string
	VerifiedAt   time.Time
}

func NewServiceVerification(registrantID id.RegistrantID, serviceType ServiceType, provider string, at time.Time) (*ServiceVerification, error) {
	if registrantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registrant id required")
	}
	if !serviceType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid service type")
	}
	return &ServiceVerification{
		RegistrantID: registrantID,
		ServiceType:  serviceType,
		Provider:     provider,
		VerifiedAt:   at,
	}, nil
}

// GroupStatus is one provider group and whether it was verified.
type GroupStatus struct {
	Group     string
	Subgroups []string
	Verified  bool
}

// servicePriority orders categories when a registrant verifies several.
var servicePriority = []ServiceType{
	ServiceVeteran,
	ServiceMilitary,
	ServiceLawEnforcement,
	ServiceFirstResponder,
	ServiceTeacher,
}

// ResolveServiceType maps verified provider groups to the highest-priority
// service type.
func ResolveServiceType(groups []GroupStatus) (ServiceType, bool) {
	found := make(map[ServiceType]bool)
	for _, g := range groups {
		if !g.Verified {
			continue
		}
		for _, t := range classifyGroup(g) {
			found[t] = true
		}
	}
	for _, t := range servicePriority {
		if found[t] {
			return t, true
		}
	}
	return "", false
}

func classifyGroup(g GroupStatus) []ServiceType {
	switch normalizeGroup(g.Group) {
	case "military":
		for _, sub := range g.Subgroups {
			if normalizeGroup(sub) == "veteran" || normalizeGroup(sub) == "retiree" {
				return []ServiceType{ServiceVeteran}
			}
		}
		return []ServiceType{ServiceMilitary}
	case "veteran":
		return []ServiceType{ServiceVeteran}
	case "police", "law_enforcement":
		return []ServiceType{ServiceLawEnforcement}
	case "responder", "first_responder", "firefighter", "emt", "nurse":
		for _, sub := range g.Subgroups {
			if s := normalizeGroup(sub); s == "police" || s == "law_enforcement" {
				return []ServiceType{ServiceLawEnforcement}
			}
		}
		return []ServiceType{ServiceFirstResponder}
	case "teacher":
		return []ServiceType{ServiceTeacher}
	}
	return nil
}

func normalizeGroup(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// State binds an OAuth state value to the registrant that started the flow.
type State struct {
	Value        string
	RegistrantID id.RegistrantID
	ExpiresAt    time.Time
}
