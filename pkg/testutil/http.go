// Package testutil holds helpers shared by handler, service and integration
// tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// errorBody mirrors the envelope httputil.WriteError renders.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// NewJSONRequest marshals body (when non-nil) and builds a JSON request.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return newRequest(method, path, nil)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err, "marshal request body")
	return newRequest(method, path, bytes.NewReader(raw))
}

// NewRequestWithBody builds a JSON request from a literal body, which may be
// malformed on purpose. An empty body sends no payload.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	if body == "" {
		return newRequest(method, path, nil)
	}
	return newRequest(method, path, strings.NewReader(body))
}

func newRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req through handler and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the recorded JSON body into a T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out), "decode response: %s", rr.Body.String())
	return out
}

// AssertStatusAndError checks the status and the error code of a failed
// response. Internal errors must not leak a description.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	body := UnmarshalResponse[errorBody](t, rr)
	assert.Equal(t, code, body.Error)
	if code == "internal_error" {
		assert.Empty(t, body.Description, "internal errors carry no description")
	}
}
