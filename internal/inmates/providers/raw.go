package providers

import (
	"strings"
	"time"

	"inmates/internal/inmates/models"
)

// Source date layouts.
const (
	StateDateLayout   = "2006-01-02"
	FederalDateLayout = "01/02/2006"
)

// RawRecord is one record in a provider's native shape. The set of variants is
// closed: StateRaw and FederalRaw.
type RawRecord interface {
	Jurisdiction() models.Jurisdiction
	raw()
}

// StateRaw is one row of the TDCJ offender search results table. Columns the
// adapter does not recognize are not carried.
type StateRaw struct {
	Number           string // "TDCJ Number"
	Name             string // "Name", unsplit as "LAST, FIRST MIDDLE"
	Race             string // "Race"
	Gender           string // "Gender"
	ProjectedRelease string // "Projected Release Date"
	Unit             string // "Unit of Assignment"
	URL              string // absolute link to the offender detail page
}

// Jurisdiction implements RawRecord.
func (StateRaw) Jurisdiction() models.Jurisdiction { return models.JurisdictionTexas }

func (StateRaw) raw() {}

// ReleaseDate parses the projected release date. Values such as "NOT AVAILABLE"
// report false.
func (r StateRaw) ReleaseDate() (time.Time, bool) {
	return parseDate(StateDateLayout, r.ProjectedRelease)
}

// FederalRaw is one entry of the FBOP inmate locator "InmateLocator" array.
type FederalRaw struct {
	InmateNum   string `json:"inmateNum"`
	NameFirst   string `json:"nameFirst"`
	NameMiddle  string `json:"nameMiddle"`
	NameLast    string `json:"nameLast"`
	Race        string `json:"race"`
	Sex         string `json:"sex"`
	Age         string `json:"age"`
	FaclCode    string `json:"faclCode"`
	FaclName    string `json:"faclName"`
	ActRelDate  string `json:"actRelDate"`
	ProjRelDate string `json:"projRelDate"`
	ReleaseCode string `json:"releaseCode"`
}

// Jurisdiction implements RawRecord.
func (FederalRaw) Jurisdiction() models.Jurisdiction { return models.JurisdictionFederal }

func (FederalRaw) raw() {}

// ReleaseDate prefers the actual release date and falls back to the projected
// one. Non-date values ("LIFE", "UNKNOWN") report false.
func (r FederalRaw) ReleaseDate() (time.Time, bool) {
	if t, ok := parseDate(FederalDateLayout, r.ActRelDate); ok {
		return t, true
	}
	return parseDate(FederalDateLayout, r.ProjRelDate)
}

func parseDate(layout, value string) (time.Time, bool) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
