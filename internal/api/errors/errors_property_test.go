package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Property 1: Structured Error Response Format**
// *For any* API error response, the response body SHALL contain code, message
// and request_id fields matching the error.
func TestPropertyStructuredErrorResponseFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genErrorCode := gen.OneConstOf(
		CodeValidationError,
		CodeNotFound,
		CodeInternalError,
	)

	genNonEmptyString := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0
	})

	genRequestID := gen.RegexMatch("[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}")

	properties.Property("Error response contains required fields", prop.ForAll(
		func(code, message, requestID string) bool {
			rr := httptest.NewRecorder()
			WriteError(rr, New(code, message).WithRequestID(requestID))

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Logf("Failed to decode response: %v", err)
				return false
			}

			if response["code"] != code {
				t.Logf("Code mismatch: got %v, want %s", response["code"], code)
				return false
			}
			if response["message"] != message {
				t.Logf("Message mismatch: got %v, want %s", response["message"], message)
				return false
			}
			if response["request_id"] != requestID {
				t.Logf("RequestID mismatch: got %v, want %s", response["request_id"], requestID)
				return false
			}
			return rr.Header().Get("Content-Type") == "application/json"
		},
		genErrorCode,
		genNonEmptyString,
		genRequestID,
	))

	properties.Property("HTTP status code matches error code", prop.ForAll(
		func(code string) bool {
			err := New(code, "test message")
			rr := httptest.NewRecorder()
			WriteError(rr, err)
			return rr.Code == err.HTTPStatusCode()
		},
		genErrorCode,
	))

	properties.TestingRun(t)
}

func TestHTTPStatusCode(t *testing.T) {
	tests := map[string]int{
		CodeValidationError: http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeInternalError:   http.StatusInternalServerError,
		"SOMETHING_ELSE":    http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := New(code, "m").HTTPStatusCode(); got != want {
			t.Errorf("HTTPStatusCode(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestErrorLogEntry(t *testing.T) {
	entry := NewErrorLogEntry("req-1", CodeInternalError, "panic recovered")
	if entry.StackTrace == "" {
		t.Error("StackTrace should be captured")
	}
	attrs := entry.ToSlogAttrs()
	if len(attrs) != 8 || attrs[1] != "req-1" {
		t.Errorf("ToSlogAttrs() = %v", attrs)
	}
}
