// Package contract holds reusable checks every provider adapter must pass.
package contract

import (
	"context"
	"testing"

	"inmates/internal/inmates/models"
	"inmates/internal/inmates/normalize"
	"inmates/internal/inmates/providers"
)

// ContractTest defines a lookup that must succeed.
type ContractTest struct {
	Name         string
	Provider     providers.Provider
	Query        models.Query
	MinRecords   int
	ValidateFunc func(records []providers.RawRecord) error
}

// ContractSuite is a collection of contract tests for one jurisdiction.
type ContractSuite struct {
	Jurisdiction models.Jurisdiction
	Tests        []ContractTest
}

// Run executes all contract tests in the suite. Every returned record must
// carry the suite's jurisdiction and normalize cleanly.
func (s *ContractSuite) Run(t *testing.T) {
	t.Helper()
	normalizer := normalize.New()

	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			if got := test.Provider.Jurisdiction(); got != s.Jurisdiction {
				t.Fatalf("expected jurisdiction %s, got %s", s.Jurisdiction, got)
			}

			records, err := test.Provider.Fetch(context.Background(), test.Query)
			if err != nil {
				t.Fatalf("provider fetch failed: %v", err)
			}
			if records == nil {
				t.Error("records must be an empty slice, not nil, when nothing matches")
			}
			if len(records) < test.MinRecords {
				t.Errorf("expected at least %d records, got %d", test.MinRecords, len(records))
			}

			for i, raw := range records {
				if raw.Jurisdiction() != s.Jurisdiction {
					t.Errorf("record %d: jurisdiction %s, want %s", i, raw.Jurisdiction(), s.Jurisdiction)
				}
				inmate, err := normalizer.Normalize(raw)
				if err != nil {
					t.Errorf("record %d does not normalize: %v", i, err)
					continue
				}
				if inmate.FetchedAt.IsZero() {
					t.Errorf("record %d: FetchedAt not set", i)
				}
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(records); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// ErrorContractTest validates that provider errors follow the taxonomy.
type ErrorContractTest struct {
	Name          string
	Provider      providers.Provider
	Query         models.Query
	ExpectedError providers.ErrorCategory
	ExpectedRetry bool
}

// Run executes an error contract test.
func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Helper()

	_, err := ect.Provider.Fetch(context.Background(), ect.Query)
	if err == nil {
		t.Fatal("expected error but got none")
	}

	fe := providers.Classify(ect.Provider.Jurisdiction(), err)
	if fe.Category != ect.ExpectedError {
		t.Errorf("expected error category %s, got %s", ect.ExpectedError, fe.Category)
	}
	if fe.Retryable != ect.ExpectedRetry {
		t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, fe.Retryable)
	}
}
