package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers record disclosures: every answered lookup.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or unauthorized lookups.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers source failures useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names an audited action.
type AuditEvent string

const (
	EventLookupCompleted AuditEvent = "lookup_completed"
	EventLookupRejected  AuditEvent = "lookup_rejected"
	EventLookupDegraded  AuditEvent = "lookup_degraded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLookupCompleted: CategoryCompliance,
	EventLookupRejected:  CategorySecurity,
	EventLookupDegraded:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted once per lookup. It never carries the raw query: names and
// inmate numbers are recorded only as SubjectHash.
type Event struct {
	ID            string        `json:"id"`
	Category      EventCategory `json:"category"`
	Timestamp     time.Time     `json:"timestamp"`
	Action        string        `json:"action"`
	QueryKind     string        `json:"query_kind"`
	SubjectHash   string        `json:"subject_hash"`
	Jurisdictions []string      `json:"jurisdictions"`
	Inmates       int           `json:"inmates"`
	ProviderErrs  int           `json:"provider_errors"`
	CacheHit      bool          `json:"cache_hit"`
	Reason        string        `json:"reason,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
	ActorID       string        `json:"actor_id,omitempty"`
	ClientIP      string        `json:"client_ip,omitempty"`
}

// HashSubject returns the hex SHA-256 of a query key.
func HashSubject(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
