package normalize

import (
	"fmt"

	"inmates/internal/inmates/providers"
)

// NormalizationError reports a raw record that could not be mapped onto the
// canonical schema. The offending record is kept for diagnostics.
type NormalizationError struct {
	Raw    providers.RawRecord
	Reason string
}

// Error implements the error interface
func (e *NormalizationError) Error() string {
	if e.Raw == nil {
		return "normalize record: " + e.Reason
	}
	return fmt.Sprintf("normalize %s record: %s", e.Raw.Jurisdiction(), e.Reason)
}
