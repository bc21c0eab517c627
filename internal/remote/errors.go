package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/havenchat/companion/internal/model/auth"
)

// Display strings shared by every operation boundary.
const (
	MsgNoResponse = "No response from server. Please try again."
	MsgUnexpected = "An unexpected error occurred."
)

// APIError is a non-2xx reply from the remote service.
type APIError struct {
	StatusCode int
	Payload    auth.ErrorPayload
	Body       []byte
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}
	// A body that is not a known error shape just leaves Payload empty.
	_ = json.Unmarshal(body, &apiErr.Payload)
	return apiErr
}

func (e *APIError) Error() string {
	if msg, ok := e.Payload.Message(); ok {
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("remote returned %d", e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports a 401 reply.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports a 404 reply.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Describe converts err into the string shown to the user. statusFormat is
// used for status failures without a recognised payload and must contain one %d.
func Describe(err error, statusFormat string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoResponse) {
		return MsgNoResponse
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg, ok := apiErr.Payload.Message(); ok {
			return msg
		}
		return fmt.Sprintf(statusFormat, apiErr.StatusCode)
	}
	return MsgUnexpected
}
