package models

import "strings"

// Jurisdiction identifies the prison system a record originates from.
type Jurisdiction string

const (
	JurisdictionTexas   Jurisdiction = "Texas"
	JurisdictionFederal Jurisdiction = "Federal"
)

// String returns the jurisdiction name.
func (j Jurisdiction) String() string {
	return string(j)
}

// IsValid reports whether j is one of the known jurisdictions.
func (j Jurisdiction) IsValid() bool {
	switch j {
	case JurisdictionTexas, JurisdictionFederal:
		return true
	default:
		return false
	}
}

// ParseJurisdiction matches a jurisdiction name case-insensitively.
// "state" and "tdcj" are accepted for Texas, "fbop" for Federal.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "texas", "state", "tdcj":
		return JurisdictionTexas, nil
	case "federal", "fbop":
		return JurisdictionFederal, nil
	default:
		return "", &InvalidQueryError{Field: "jurisdiction", Reason: "unknown jurisdiction " + strings.TrimSpace(s)}
	}
}
