// Package names splits free-form human names into their parts. Sources that
// publish a single "Name" column (TDCJ prints "LAST, FIRST MIDDLE") rely on it.
package names

import (
	"errors"
	"strings"

	"github.com/polera/gonameparts"
)

// ErrEmptyName is returned when there is nothing to parse.
var ErrEmptyName = errors.New("name is empty")

// Name is a parsed human name. Case is preserved as given.
type Name struct {
	Title  string
	First  string
	Middle string
	Last   string
	Suffix string
}

// Parser splits names in either "Last, First Middle" or "First Middle Last"
// order. The zero value is ready to use.
//
// Space-ordered names go through gonameparts. The comma form is split at the
// comma first: everything before it is the family name, and only the given
// names are handed to gonameparts.
type Parser struct{}

// suffixes recognized on the family-name side of the comma.
var suffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {},
}

// Parse splits full into its parts.
func (Parser) Parse(full string) (Name, error) {
	full = strings.Join(strings.Fields(full), " ")
	if full == "" {
		return Name{}, ErrEmptyName
	}
	if strings.Contains(full, ",") {
		return parseLastFirst(full), nil
	}
	return fromParts(gonameparts.Parse(full)), nil
}

// parseLastFirst handles "LAST, FIRST MIDDLE", "LAST JR, FIRST" and
// "LAST, FIRST, JR".
func parseLastFirst(full string) Name {
	parts := strings.Split(full, ",")

	var suffix string
	lastTokens := strings.Fields(parts[0])
	if len(lastTokens) > 1 && isSuffix(lastTokens[len(lastTokens)-1]) {
		suffix = lastTokens[len(lastTokens)-1]
		lastTokens = lastTokens[:len(lastTokens)-1]
	}
	if len(parts) > 2 && suffix == "" {
		suffix = strings.TrimSpace(strings.Join(parts[2:], " "))
	}

	var n Name
	if len(parts) > 1 {
		if given := strings.TrimSpace(parts[1]); given != "" {
			n = givenNames(gonameparts.Parse(given))
		}
	}
	n.Last = strings.Join(lastTokens, " ")
	if suffix != "" {
		n.Suffix = suffix
	}
	return n
}

// givenNames folds a parse of the given-name segment alone: whatever
// gonameparts took for a family name is really the last middle name.
func givenNames(p gonameparts.NameParts) Name {
	n := fromParts(p)
	n.Middle = strings.TrimSpace(n.Middle + " " + n.Last)
	n.Last = ""
	// a lone letter after the given names is a middle initial, not "V" or "I"
	if len([]rune(n.Suffix)) == 1 {
		n.Middle = strings.TrimSpace(n.Middle + " " + n.Suffix)
		n.Suffix = ""
	}
	return n
}

func fromParts(p gonameparts.NameParts) Name {
	n := Name{
		Title:  strings.TrimSpace(p.Salutation),
		First:  strings.TrimSpace(p.FirstName),
		Middle: strings.TrimSpace(p.MiddleName),
		Last:   strings.TrimSpace(p.LastName),
		Suffix: strings.TrimSpace(p.Generation),
	}
	if n.Suffix == "" {
		n.Suffix = strings.TrimSpace(p.Suffix)
	}
	// single tokens may come back as a family name
	if n.First == "" && n.Middle == "" {
		n.First, n.Last = n.Last, ""
	}
	return n
}

func isSuffix(tok string) bool {
	_, ok := suffixes[strings.ToLower(strings.TrimSuffix(tok, "."))]
	return ok
}
