// Package testutil provides common test utilities for handler and integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmates/internal/inmates/models"
)

// NewRequest creates a GET request for path with the given query parameters.
func NewRequest(t *testing.T, path string, query url.Values) *http.Request {
	t.Helper()
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return httptest.NewRequest(http.MethodGet, path, nil)
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse unmarshals the response body into a new T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response")
	return &result
}

// DecodeResult asserts a 200 and decodes the lookup result.
func DecodeResult(t *testing.T, rr *httptest.ResponseRecorder) models.Result {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, "unexpected status code: %s", rr.Body.String())
	return *UnmarshalResponse[models.Result](t, rr)
}

// AssertStatusAndError asserts both status code and error code.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code, "unexpected status code")
	body := UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, expectedCode, (*body)["error"], "unexpected error code")
}
