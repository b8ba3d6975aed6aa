package tdcj

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmates/internal/inmates/models"
	"inmates/internal/inmates/providers"
	"inmates/internal/inmates/providers/contract"
	"inmates/internal/platform/httpclient"
)

const resultsPage = `<html><body>
<table class="tdcj_table">
  <tr>
    <th>Name</th><th>TDCJ Number</th><th>Race</th><th>Gender</th>
    <th>Projected Release Date</th><th>Unit of Assignment</th>
  </tr>
  <tr>
    <td><a href="/OffenderSearch/offenderDetail.action?sid=01234567">DOE, JOHN ALLEN</a></td>
    <td>01234567</td><td>W</td><td>M</td><td>2031-05-14</td><td>HUNTSVILLE</td>
  </tr>
  <tr>
    <td><a href="/OffenderSearch/offenderDetail.action?sid=07654321">DOE, JANE</a></td>
    <td>07654321</td><td>H</td><td>F</td><td>NOT AVAILABLE</td><td>MOUNTAIN VIEW</td>
  </tr>
</table>
</body></html>`

const noResultsPage = `<html><body><p>No offenders found.</p></body></html>`

func newTestClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:        2 * time.Second,
		MaxRetries:     1,
		RateLimit:      1000,
		RateBurst:      100,
		InitialBackoff: time.Millisecond,
	})
}

type captured struct {
	Method string
	Path   string
	Form   url.Values
}

func newServer(t *testing.T, status int, body string, seen *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			_ = r.ParseForm()
			seen.Method = r.Method
			seen.Path = r.URL.Path
			seen.Form = r.PostForm
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	t.Run("by id pads the number and parses every row", func(t *testing.T) {
		var seen captured
		srv := newServer(t, http.StatusOK, resultsPage, &seen)
		a, err := New(srv.URL, newTestClient())
		require.NoError(t, err)

		q, err := models.NewIDQuery("1234567")
		require.NoError(t, err)
		records, err := a.Fetch(context.Background(), q)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, seen.Method)
		assert.Equal(t, searchPath, seen.Path)
		assert.Equal(t, "01234567", seen.Form.Get("tdcj"))
		assert.Equal(t, "Search", seen.Form.Get("btnSearch"))
		assert.Equal(t, "ALL", seen.Form.Get("gender"))
		assert.Empty(t, seen.Form.Get("lastName"))

		require.Len(t, records, 2)
		first, ok := records[0].(providers.StateRaw)
		require.True(t, ok)
		assert.Equal(t, "01234567", first.Number)
		assert.Equal(t, "DOE, JOHN ALLEN", first.Name)
		assert.Equal(t, "W", first.Race)
		assert.Equal(t, "M", first.Gender)
		assert.Equal(t, "2031-05-14", first.ProjectedRelease)
		assert.Equal(t, "HUNTSVILLE", first.Unit)
		assert.Equal(t, srv.URL+"/OffenderSearch/offenderDetail.action?sid=01234567", first.URL)

		second := records[1].(providers.StateRaw)
		assert.Equal(t, "NOT AVAILABLE", second.ProjectedRelease)
	})

	t.Run("by name sends both names", func(t *testing.T) {
		var seen captured
		srv := newServer(t, http.StatusOK, resultsPage, &seen)
		a, err := New(srv.URL, newTestClient())
		require.NoError(t, err)

		q, err := models.NewNameQuery("John", "Doe")
		require.NoError(t, err)
		_, err = a.Fetch(context.Background(), q)
		require.NoError(t, err)

		assert.Equal(t, "John", seen.Form.Get("firstName"))
		assert.Equal(t, "Doe", seen.Form.Get("lastName"))
		assert.Empty(t, seen.Form.Get("tdcj"))
	})

	t.Run("page without results table is an empty list", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, noResultsPage, nil)
		a, err := New(srv.URL, newTestClient())
		require.NoError(t, err)

		q, _ := models.NewNameQuery("Nobody", "Here")
		records, err := a.Fetch(context.Background(), q)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("server error is a provider outage", func(t *testing.T) {
		srv := newServer(t, http.StatusServiceUnavailable, "down", nil)
		a, err := New(srv.URL, newTestClient())
		require.NoError(t, err)

		q, _ := models.NewIDQuery("1")
		_, err = a.Fetch(context.Background(), q)
		require.Error(t, err)
		fe := providers.Classify(models.JurisdictionTexas, err)
		assert.Equal(t, providers.ErrorProviderOutage, fe.Category)
	})

	t.Run("table without header row is a contract mismatch", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `<table class="tdcj_table"><tr><td>x</td></tr></table>`, nil)
		a, err := New(srv.URL, newTestClient())
		require.NoError(t, err)

		q, _ := models.NewIDQuery("1")
		_, err = a.Fetch(context.Background(), q)
		var fe *providers.FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, providers.ErrorContractMismatch, fe.Category)
	})

	t.Run("canceled context is reported as canceled", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, resultsPage, nil)
		a, err := New(srv.URL, newTestClient())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		q, _ := models.NewIDQuery("1")
		_, err = a.Fetch(ctx, q)
		require.Error(t, err)
		assert.Equal(t, providers.ErrorCanceled, providers.Classify(models.JurisdictionTexas, err).Category)
	})
}

func TestNew(t *testing.T) {
	a, err := New("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, a.base.String())
	assert.Equal(t, models.JurisdictionTexas, a.Jurisdiction())

	_, err = New("not a url", nil)
	assert.Error(t, err)
}

func TestFormatID(t *testing.T) {
	assert.Equal(t, "00000042", FormatID("42"))
	assert.Equal(t, "01234567", FormatID("1234567"))
	assert.Equal(t, "123456789", FormatID("123456789"))
}

func TestTDCJProviderContract(t *testing.T) {
	srv := newServer(t, http.StatusOK, resultsPage, nil)
	a, err := New(srv.URL, newTestClient())
	require.NoError(t, err)

	byID, _ := models.NewIDQuery("1234567")
	byName, _ := models.NewNameQuery("John", "Doe")

	suite := &contract.ContractSuite{
		Jurisdiction: models.JurisdictionTexas,
		Tests: []contract.ContractTest{
			{Name: "lookup by id", Provider: a, Query: byID, MinRecords: 1},
			{Name: "lookup by name", Provider: a, Query: byName, MinRecords: 1},
		},
	}
	suite.Run(t)

	down := newServer(t, http.StatusTooManyRequests, "slow down", nil)
	limited, err := New(down.URL, newTestClient())
	require.NoError(t, err)
	(&contract.ErrorContractTest{
		Name:          "rate limited",
		Provider:      limited,
		Query:         byID,
		ExpectedError: providers.ErrorRateLimited,
		ExpectedRetry: true,
	}).Run(t)
}
