package models

import "encoding/json"

// Result is the aggregate of one query across all providers.
//
// Inmates are ordered by provider registration, then by the order each provider
// returned them. Errors follow the same provider order. Neither is sorted.
type Result struct {
	Inmates []Inmate
	Errors  []ProviderError
}

// Jurisdictions returns the distinct jurisdictions that contributed records,
// in result order.
func (r Result) Jurisdictions() []Jurisdiction {
	seen := make(map[Jurisdiction]struct{})
	var out []Jurisdiction
	for _, inmate := range r.Inmates {
		if _, ok := seen[inmate.Jurisdiction]; ok {
			continue
		}
		seen[inmate.Jurisdiction] = struct{}{}
		out = append(out, inmate.Jurisdiction)
	}
	return out
}

type resultJSON struct {
	Inmates []Inmate        `json:"inmates"`
	Errors  []ProviderError `json:"errors"`
}

// MarshalJSON always emits both lists, empty rather than null.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Inmates: r.Inmates, Errors: r.Errors}
	if out.Inmates == nil {
		out.Inmates = []Inmate{}
	}
	if out.Errors == nil {
		out.Errors = []ProviderError{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the format produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Inmates = in.Inmates
	r.Errors = in.Errors
	return nil
}
