package models

import "strings"

// QueryKind tells which half of a Query is populated.
type QueryKind string

const (
	QueryByID   QueryKind = "id"
	QueryByName QueryKind = "name"
)

// Query is one logical lookup dispatched to every provider.
//
// Invariants:
//   - Kind is QueryByID or QueryByName
//   - id queries carry a non-empty digit string and no name parts
//   - name queries carry no id and at least one non-empty name part
//
// Queries are only built through NewIDQuery and NewNameQuery.
type Query struct {
	kind  QueryKind
	id    string
	first string
	last  string
}

// NewIDQuery builds an id query. The id is trimmed and must consist of ASCII
// digits only; anything else beyond that is left for the providers to judge.
func NewIDQuery(id string) (Query, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Query{}, &InvalidQueryError{Field: "id", Reason: "id is required"}
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return Query{}, &InvalidQueryError{Field: "id", Reason: "id must contain only digits"}
		}
	}
	return Query{kind: QueryByID, id: id}, nil
}

// NewNameQuery builds a name query from trimmed first and last names.
func NewNameQuery(first, last string) (Query, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first == "" && last == "" {
		return Query{}, &InvalidQueryError{Field: "name", Reason: "first or last name is required"}
	}
	return Query{kind: QueryByName, first: first, last: last}, nil
}

// Kind returns the populated half of the query.
func (q Query) Kind() QueryKind { return q.kind }

// ID returns the inmate number of an id query.
func (q Query) ID() string { return q.id }

// First returns the first name of a name query.
func (q Query) First() string { return q.first }

// Last returns the last name of a name query.
func (q Query) Last() string { return q.last }

// IsZero reports whether the query was never constructed.
func (q Query) IsZero() bool { return q.kind == "" }

// Key returns a stable, case-folded identifier for the query.
func (q Query) Key() string {
	switch q.kind {
	case QueryByID:
		return "id:" + q.id
	case QueryByName:
		return "name:" + strings.ToLower(q.last) + ":" + strings.ToLower(q.first)
	default:
		return ""
	}
}

// String renders the query for logs.
func (q Query) String() string {
	switch q.kind {
	case QueryByID:
		return "id " + q.id
	case QueryByName:
		return "name " + q.last + ", " + q.first
	default:
		return "empty query"
	}
}
