// Package normalize maps provider-native records onto the canonical Inmate.
//
// Required fields (id, jurisdiction, first and last name) that are missing or
// unparseable fail the record with a *NormalizationError. Optional fields that
// are missing or unparseable become nil. FetchedAt is stamped when the record
// is normalized, so normalizing the same record twice yields equal inmates
// apart from FetchedAt.
package normalize

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"inmates/internal/inmates/models"
	"inmates/internal/inmates/names"
	"inmates/internal/inmates/providers"
)

// NameParser splits an unsplit full name.
type NameParser interface {
	Parse(full string) (names.Name, error)
}

// Normalizer converts one raw record into one Inmate.
type Normalizer struct {
	names NameParser
	now   func() time.Time
}

// Option configures the Normalizer.
type Option func(*Normalizer)

// WithNameParser replaces the default name parser.
func WithNameParser(p NameParser) Option {
	return func(n *Normalizer) {
		n.names = p
	}
}

// WithClock sets the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// New creates a Normalizer using names.Parser and the wall clock by default.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		names: names.Parser{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps raw onto the canonical schema.
func (n *Normalizer) Normalize(raw providers.RawRecord) (models.Inmate, error) {
	switch r := raw.(type) {
	case providers.StateRaw:
		return n.normalizeState(r)
	case *providers.StateRaw:
		if r == nil {
			return models.Inmate{}, &NormalizationError{Reason: "record is nil"}
		}
		return n.normalizeState(*r)
	case providers.FederalRaw:
		return n.normalizeFederal(r)
	case *providers.FederalRaw:
		if r == nil {
			return models.Inmate{}, &NormalizationError{Reason: "record is nil"}
		}
		return n.normalizeFederal(*r)
	case nil:
		return models.Inmate{}, &NormalizationError{Reason: "record is nil"}
	default:
		return models.Inmate{}, &NormalizationError{Raw: raw, Reason: fmt.Sprintf("unsupported record type %T", raw)}
	}
}

func (n *Normalizer) normalizeState(r providers.StateRaw) (models.Inmate, error) {
	id, ok := digits(r.Number)
	if !ok {
		return models.Inmate{}, &NormalizationError{Raw: r, Reason: fmt.Sprintf("TDCJ number %q is not numeric", r.Number)}
	}

	name, err := n.names.Parse(r.Name)
	if err != nil {
		return models.Inmate{}, &NormalizationError{Raw: r, Reason: fmt.Sprintf("parse name %q: %v", r.Name, err)}
	}
	first, last := strings.TrimSpace(name.First), strings.TrimSpace(name.Last)
	if first == "" || last == "" {
		return models.Inmate{}, &NormalizationError{Raw: r, Reason: fmt.Sprintf("name %q lacks a first or last name", r.Name)}
	}

	inmate := models.Inmate{
		ID:           id,
		Jurisdiction: models.JurisdictionTexas,
		FirstName:    first,
		LastName:     last,
		Unit:         optional(r.Unit),
		Race:         optional(r.Race),
		Sex:          optional(r.Gender),
		URL:          optionalURL(r.URL),
		FetchedAt:    n.now(),
	}
	if release, ok := r.ReleaseDate(); ok {
		inmate.Release = &release
	}
	return inmate, nil
}

func (n *Normalizer) normalizeFederal(r providers.FederalRaw) (models.Inmate, error) {
	id, ok := digits(strings.ReplaceAll(r.InmateNum, "-", ""))
	if !ok {
		return models.Inmate{}, &NormalizationError{Raw: r, Reason: fmt.Sprintf("register number %q is not numeric", r.InmateNum)}
	}

	first, last := strings.TrimSpace(r.NameFirst), strings.TrimSpace(r.NameLast)
	if first == "" {
		return models.Inmate{}, &NormalizationError{Raw: r, Reason: "first name is missing"}
	}
	if last == "" {
		return models.Inmate{}, &NormalizationError{Raw: r, Reason: "last name is missing"}
	}

	inmate := models.Inmate{
		ID:           id,
		Jurisdiction: models.JurisdictionFederal,
		FirstName:    first,
		LastName:     last,
		Unit:         optional(r.FaclCode),
		Race:         optional(r.Race),
		Sex:          optional(r.Sex),
		FetchedAt:    n.now(),
	}
	if release, ok := r.ReleaseDate(); ok {
		inmate.Release = &release
	}
	return inmate, nil
}

// digits trims s and reports whether what remains is a non-empty digit string.
func digits(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalURL(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return nil
	}
	return &s
}
