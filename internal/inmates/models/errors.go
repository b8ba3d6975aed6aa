package models

import (
	"encoding/json"
	"fmt"
)

// ProviderError records one source's failure to answer a query, or the loss of
// one of its records during normalization. It never aborts the aggregate query.
type ProviderError struct {
	Jurisdiction Jurisdiction
	Message      string
	Cause        error
}

// Error implements the error interface
func (e ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Jurisdiction, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Jurisdiction, e.Message)
}

// Unwrap supports error unwrapping
func (e ProviderError) Unwrap() error {
	return e.Cause
}

type providerErrorJSON struct {
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	Message      string       `json:"message"`
}

// MarshalJSON exposes jurisdiction and message only; causes stay server-side.
func (e ProviderError) MarshalJSON() ([]byte, error) {
	return json.Marshal(providerErrorJSON{Jurisdiction: e.Jurisdiction, Message: e.Message})
}

// UnmarshalJSON restores jurisdiction and message. The cause is not restored.
func (e *ProviderError) UnmarshalJSON(data []byte) error {
	var in providerErrorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Jurisdiction = in.Jurisdiction
	e.Message = in.Message
	return nil
}

// InvalidQueryError reports caller input that cannot form a Query. It is the
// only failure surfaced to callers instead of being returned in-band.
type InvalidQueryError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}
