package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoAPIKey is returned before any request is sent when the client has no key.
var ErrNoAPIKey = errors.New("remote: api key is not configured")

// TransportError is returned when the remote platform could not be reached.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError is returned for non-2xx responses and for 2xx responses whose
// body is empty, unparseable or missing the expected envelope.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Message    string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d, body: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the remote platform.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
