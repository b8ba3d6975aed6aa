package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format of release dates.
const DateLayout = "2006-01-02"

// Inmate is the canonical, source-agnostic lookup result.
//
// Records are built by the normalizer and not modified afterwards. Optional
// fields are nil when the source did not expose a usable value. Release keeps
// whatever meaning the source gives it (projected, actual, or absent).
type Inmate struct {
	ID           string
	Jurisdiction Jurisdiction
	FirstName    string
	LastName     string
	Unit         *string
	Race         *string
	Sex          *string
	URL          *string
	Release      *time.Time
	FetchedAt    time.Time
}

type inmateJSON struct {
	ID           string       `json:"id"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Unit         *string      `json:"unit"`
	Race         *string      `json:"race"`
	Sex          *string      `json:"sex"`
	URL          *string      `json:"url"`
	Release      *string      `json:"release"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

// MarshalJSON encodes the release as a plain date and absent values as null.
func (i Inmate) MarshalJSON() ([]byte, error) {
	out := inmateJSON{
		ID:           i.ID,
		Jurisdiction: i.Jurisdiction,
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		Unit:         i.Unit,
		Race:         i.Race,
		Sex:          i.Sex,
		URL:          i.URL,
		FetchedAt:    i.FetchedAt,
	}
	if i.Release != nil {
		s := i.Release.Format(DateLayout)
		out.Release = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the format produced by MarshalJSON.
func (i *Inmate) UnmarshalJSON(data []byte) error {
	var in inmateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*i = Inmate{
		ID:           in.ID,
		Jurisdiction: in.Jurisdiction,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Unit:         in.Unit,
		Race:         in.Race,
		Sex:          in.Sex,
		URL:          in.URL,
		FetchedAt:    in.FetchedAt,
	}
	if in.Release != nil {
		release, err := time.Parse(DateLayout, *in.Release)
		if err != nil {
			return fmt.Errorf("decode release date: %w", err)
		}
		i.Release = &release
	}
	return nil
}
