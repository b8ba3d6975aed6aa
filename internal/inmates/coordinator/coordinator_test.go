package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"inmates/internal/inmates/metrics"
	"inmates/internal/inmates/models"
	"inmates/internal/inmates/normalize"
	"inmates/internal/inmates/providers"
	"inmates/internal/inmates/providers/mocks"
)

var fixedNow = time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)

func stateRecord(number, name string) providers.StateRaw {
	return providers.StateRaw{
		Number:           number,
		Name:             name,
		Race:             "W",
		Gender:           "M",
		ProjectedRelease: "2030-01-02",
		Unit:             "HUNTSVILLE",
		URL:              "https://offender.tdcj.texas.gov/detail?sid=" + number,
	}
}

func federalRecord(number, first, last string) providers.FederalRaw {
	return providers.FederalRaw{
		InmateNum:   number,
		NameFirst:   first,
		NameLast:    last,
		Race:        "White",
		Sex:         "Male",
		FaclCode:    "BML",
		ProjRelDate: "03/15/2031",
	}
}

// delayedProvider answers after a fixed delay, honoring cancellation.
type delayedProvider struct {
	jurisdiction models.Jurisdiction
	delay        time.Duration
	records      []providers.RawRecord
	err          error
	calls        atomic.Int32
}

func (p *delayedProvider) Jurisdiction() models.Jurisdiction { return p.jurisdiction }

func (p *delayedProvider) Fetch(ctx context.Context, _ models.Query) ([]providers.RawRecord, error) {
	p.calls.Add(1)
	select {
	case <-time.After(p.delay):
		return p.records, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type panickingProvider struct{}

func (panickingProvider) Jurisdiction() models.Jurisdiction { return models.JurisdictionFederal }

func (panickingProvider) Fetch(context.Context, models.Query) ([]providers.RawRecord, error) {
	panic("locator exploded")
}

// =============================================================================
// Coordinator Test Suite
// =============================================================================

type CoordinatorSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	state      *mocks.MockProvider
	federal    *mocks.MockProvider
	normalizer *normalize.Normalizer
	coord      *Coordinator
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.state = mocks.NewMockProvider(s.ctrl)
	s.federal = mocks.NewMockProvider(s.ctrl)
	s.state.EXPECT().Jurisdiction().Return(models.JurisdictionTexas).AnyTimes()
	s.federal.EXPECT().Jurisdiction().Return(models.JurisdictionFederal).AnyTimes()
	s.normalizer = normalize.New(normalize.WithClock(func() time.Time { return fixedNow }))

	coord, err := New(
		[]providers.Provider{s.state, s.federal},
		s.normalizer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.coord = coord
}

func (s *CoordinatorSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CoordinatorSuite) TestNew() {
	s.Run("empty provider list returns error", func() {
		_, err := New(nil, s.normalizer)
		s.Error(err)
		s.Contains(err.Error(), "at least one provider is required")
	})

	s.Run("typed nil provider returns error", func() {
		var missing *mocks.MockProvider
		_, err := New([]providers.Provider{s.state, missing}, s.normalizer)
		s.Error(err)
		s.Contains(err.Error(), "provider is required")
	})

	s.Run("nil normalizer returns error", func() {
		_, err := New([]providers.Provider{s.state}, nil)
		s.Error(err)
		s.Contains(err.Error(), "normalizer is required")
	})

	s.Run("duplicate jurisdiction returns error", func() {
		other := mocks.NewMockProvider(s.ctrl)
		other.EXPECT().Jurisdiction().Return(models.JurisdictionTexas).AnyTimes()
		_, err := New([]providers.Provider{s.state, other}, s.normalizer)
		s.Error(err)
	})

	s.Run("registration order is kept", func() {
		c, err := New([]providers.Provider{s.federal, s.state}, s.normalizer)
		s.Require().NoError(err)
		s.Equal([]models.Jurisdiction{models.JurisdictionFederal, models.JurisdictionTexas}, c.Jurisdictions())
	})
}

// =============================================================================
// Query Tests
// =============================================================================

func (s *CoordinatorSuite) TestQueryByID() {
	s.Run("state empty and federal match yields one federal inmate", func() {
		s.state.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q models.Query) ([]providers.RawRecord, error) {
				s.Equal(models.QueryByID, q.Kind())
				s.Equal("88888888", q.ID())
				return []providers.RawRecord{}, nil
			})
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return([]providers.RawRecord{federalRecord("88888-888", "JOHN", "DOE")}, nil)

		result, err := s.coord.QueryByID(context.Background(), "88888888")
		s.Require().NoError(err)
		s.Require().Len(result.Inmates, 1)
		s.Empty(result.Errors)
		s.Equal(models.JurisdictionFederal, result.Inmates[0].Jurisdiction)
		s.Equal("88888888", result.Inmates[0].ID)
		s.Equal(fixedNow, result.Inmates[0].FetchedAt)
	})

	s.Run("invalid id is rejected before any provider is called", func() {
		result, err := s.coord.QueryByID(context.Background(), "12-AB")
		var invalid *models.InvalidQueryError
		s.Require().ErrorAs(err, &invalid)
		s.Equal("id", invalid.Field)
		s.Nil(result.Inmates)
	})
}

func (s *CoordinatorSuite) TestQueryByName() {
	s.Run("both providers time out", func() {
		s.state.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return(nil, providers.NewFetchError(providers.ErrorTimeout, models.JurisdictionFederal, "request timed out", nil))

		result, err := s.coord.QueryByName(context.Background(), "John", "Smith")
		s.Require().NoError(err)
		s.NotNil(result.Inmates)
		s.Empty(result.Inmates)
		s.Require().Len(result.Errors, 2)
		s.Equal(models.JurisdictionTexas, result.Errors[0].Jurisdiction)
		s.Equal(models.JurisdictionFederal, result.Errors[1].Jurisdiction)
		for _, pe := range result.Errors {
			s.Equal(providers.ErrorTimeout, providers.GetCategory(pe))
			s.Contains(pe.Message, "timed out")
		}
	})

	s.Run("one provider fails and the other returns records", func() {
		s.state.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return([]providers.RawRecord{
				stateRecord("01234567", "SMITH, JOHN"),
				stateRecord("07654321", "SMITH, JOHN PAUL"),
			}, nil)
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

		result, err := s.coord.QueryByName(context.Background(), "John", "Smith")
		s.Require().NoError(err)
		s.Len(result.Inmates, 2)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.JurisdictionFederal, result.Errors[0].Jurisdiction)
		s.Equal("JOHN", result.Inmates[0].FirstName)
		s.Equal("SMITH", result.Inmates[0].LastName)
	})

	s.Run("empty name is rejected", func() {
		_, err := s.coord.QueryByName(context.Background(), " ", "")
		var invalid *models.InvalidQueryError
		s.ErrorAs(err, &invalid)
	})
}

func (s *CoordinatorSuite) TestNormalizationFailures() {
	s.Run("records that fail normalization are dropped and counted", func() {
		raws := []providers.RawRecord{
			stateRecord("01234567", "SMITH, JOHN"),
			stateRecord("NOT-A-NUMBER", "SMITH, JANE"),
			stateRecord("07654321", ""),
		}
		s.state.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(raws, nil)
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return([]providers.RawRecord{
				federalRecord("11111-111", "JANE", "SMITH"),
				federalRecord("22222-222", "", "SMITH"),
			}, nil)

		result, err := s.coord.QueryByName(context.Background(), "", "Smith")
		s.Require().NoError(err)

		s.Len(result.Inmates, 2)
		s.Len(result.Errors, 3)
		s.Equal(len(raws)+2, len(result.Inmates)+len(result.Errors))
		for _, pe := range result.Errors {
			var ne *normalize.NormalizationError
			s.ErrorAs(pe, &ne)
			s.Contains(pe.Message, "could not be normalized")
		}
	})

	s.Run("record from the wrong jurisdiction is dropped", func() {
		s.state.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return([]providers.RawRecord{federalRecord("11111-111", "JANE", "SMITH")}, nil)
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, nil)

		result, err := s.coord.QueryByName(context.Background(), "Jane", "Smith")
		s.Require().NoError(err)
		s.Empty(result.Inmates)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.JurisdictionTexas, result.Errors[0].Jurisdiction)
	})

	s.Run("typed nil record does not crash the query", func() {
		var missing *providers.StateRaw
		s.state.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return([]providers.RawRecord{missing}, nil)
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return([]providers.RawRecord{}, nil)

		result, err := s.coord.QueryByID(context.Background(), "1")
		s.Require().NoError(err)
		s.Empty(result.Inmates)
		s.Len(result.Errors, 1)
	})
}

func (s *CoordinatorSuite) TestOnly() {
	s.Run("restricts dispatch to the named jurisdictions", func() {
		s.federal.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return([]providers.RawRecord{}, nil)

		only, err := s.coord.Only(models.JurisdictionFederal)
		s.Require().NoError(err)
		s.Equal([]models.Jurisdiction{models.JurisdictionFederal}, only.Jurisdictions())

		result, err := only.QueryByID(context.Background(), "1")
		s.Require().NoError(err)
		s.Empty(result.Inmates)
		s.Empty(result.Errors)
	})

	s.Run("no arguments returns the same coordinator", func() {
		only, err := s.coord.Only()
		s.Require().NoError(err)
		s.Same(s.coord, only)
	})

	s.Run("unknown jurisdiction is rejected", func() {
		_, err := s.coord.Only(models.Jurisdiction("Oklahoma"))
		s.Error(err)
	})
}

func (s *CoordinatorSuite) TestZeroQuery() {
	_, err := s.coord.Query(context.Background(), models.Query{})
	var invalid *models.InvalidQueryError
	s.ErrorAs(err, &invalid)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestQueryOrderIsStableRegardlessOfCompletionOrder(t *testing.T) {
	normalizer := normalize.New()
	for _, delays := range [][2]time.Duration{
		{40 * time.Millisecond, 0},
		{0, 40 * time.Millisecond},
	} {
		state := &delayedProvider{
			jurisdiction: models.JurisdictionTexas,
			delay:        delays[0],
			records:      []providers.RawRecord{stateRecord("1", "DOE, JOHN"), stateRecord("2", "DOE, JANE")},
		}
		federal := &delayedProvider{
			jurisdiction: models.JurisdictionFederal,
			delay:        delays[1],
			records:      []providers.RawRecord{federalRecord("3", "JOHN", "DOE")},
		}
		coord, err := New([]providers.Provider{state, federal}, normalizer)
		if err != nil {
			t.Fatal(err)
		}

		result, err := coord.QueryByName(context.Background(), "", "Doe")
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, inmate := range result.Inmates {
			ids = append(ids, inmate.ID)
		}
		if want := []string{"1", "2", "3"}; !slices.Equal(ids, want) {
			t.Errorf("delays %v: got order %v, want %v", delays, ids, want)
		}
	}
}

func TestQueryRunsProvidersConcurrently(t *testing.T) {
	state := &delayedProvider{jurisdiction: models.JurisdictionTexas, delay: 150 * time.Millisecond, records: []providers.RawRecord{}}
	federal := &delayedProvider{jurisdiction: models.JurisdictionFederal, delay: 150 * time.Millisecond, records: []providers.RawRecord{}}
	coord, err := New([]providers.Provider{state, federal}, normalize.New())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if _, err := coord.QueryByID(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed >= 290*time.Millisecond {
		t.Errorf("providers ran sequentially: took %s", elapsed)
	}
	if state.calls.Load() != 1 || federal.calls.Load() != 1 {
		t.Errorf("each provider must be called exactly once")
	}
}

func TestQueryCanceledByCaller(t *testing.T) {
	state := &delayedProvider{jurisdiction: models.JurisdictionTexas, delay: time.Minute}
	federal := &delayedProvider{
		jurisdiction: models.JurisdictionFederal,
		records:      []providers.RawRecord{federalRecord("3", "JOHN", "DOE")},
	}
	coord, err := New([]providers.Provider{state, federal}, normalize.New())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := coord.QueryByID(ctx, "3")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(result.Inmates) != 1 || result.Inmates[0].Jurisdiction != models.JurisdictionFederal {
		t.Errorf("expected the federal record in the partial result, got %+v", result.Inmates)
	}
	if len(result.Errors) != 1 || result.Errors[0].Jurisdiction != models.JurisdictionTexas {
		t.Errorf("expected one Texas error, got %+v", result.Errors)
	}
}

func TestPanickingProviderIsReportedInBand(t *testing.T) {
	state := &delayedProvider{
		jurisdiction: models.JurisdictionTexas,
		records:      []providers.RawRecord{stateRecord("1", "DOE, JOHN")},
	}
	coord, err := New([]providers.Provider{state, panickingProvider{}}, normalize.New())
	if err != nil {
		t.Fatal(err)
	}

	result, err := coord.QueryByID(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Inmates) != 1 {
		t.Errorf("expected 1 inmate, got %d", len(result.Inmates))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if got := providers.GetCategory(result.Errors[0]); got != providers.ErrorInternal {
		t.Errorf("expected internal category, got %s", got)
	}
}
