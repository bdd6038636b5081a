// Package testutil provides common HTTP test helpers for Cockpit tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Envelope is the API response envelope with the result left undecoded.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected int, rr *httptest.ResponseRecorder, context string) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("%s: expected status %d, got %d (body: %s)", context, expected, rr.Code, rr.Body.String())
	}
}

// DecodeEnvelope decodes the response envelope and checks its status field.
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode JSON response: %v (body: %s)", err, rr.Body.String())
	}
	if env.Status != expectedStatus {
		t.Errorf("expected status '%s', got '%s' (message: %s)", expectedStatus, env.Status, env.Message)
	}
	return env
}

// DecodeResult decodes an ok envelope's result into target.
func DecodeResult(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	env := DecodeEnvelope(t, rr, "ok")
	if len(env.Result) == 0 {
		t.Fatalf("response has no result: %s", rr.Body.String())
	}
	MustUnmarshalJSON(t, env.Result, target)
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
// A string body is sent verbatim.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, b))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Do serves req on h and returns the recorded response.
func Do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
