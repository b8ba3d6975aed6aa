//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "inmates/pkg/platform/audit"
	"inmates/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
	s.Require().NoError(s.store.EnsureSchema(context.Background()), "schema creation is repeatable")
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec("TRUNCATE lookup_audit")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	for i, action := range []audit.AuditEvent{audit.EventLookupCompleted, audit.EventLookupDegraded, audit.EventLookupRejected} {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			Action:        string(action),
			QueryKind:     "id",
			SubjectHash:   audit.HashSubject("id:1"),
			Jurisdictions: []string{"Texas", "Federal"},
			Inmates:       i,
			ProviderErrs:  i,
			RequestID:     "req-" + string(action),
		}))
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventLookupRejected), events[0].Action)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal(string(audit.EventLookupDegraded), events[1].Action)
	s.Equal([]string{"Texas", "Federal"}, events[1].Jurisdictions)
	s.True(base.Add(time.Minute).Equal(events[1].Timestamp))
	s.NotEmpty(events[0].ID)

	all, err := s.store.ListRecent(ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *PostgresStoreSuite) TestDuplicateIDIsIgnored() {
	ctx := context.Background()
	event := audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    string(audit.EventLookupCompleted),
		QueryKind: "name",
	}
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Len(events, 1)
	s.Empty(events[0].Jurisdictions)
}
