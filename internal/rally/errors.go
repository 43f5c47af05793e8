package rally

import "fmt"

// AuthenticationError indicates the tracker rejected the request credentials.
// It is always surfaced to the caller and never retried by this layer.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// APIError carries a server-reported failure: either a non-2xx HTTP status or
// a non-empty Errors list inside a response envelope. Message holds the first
// server error; Errors and Warnings hold the server's lists verbatim.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
	Warnings   []string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tracker API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tracker API error: %s", e.Message)
}

// TransportError indicates the request never produced a usable response:
// connection failure, timeout, or cancellation. Retry policy belongs to the
// caller; this layer reports the failure exactly once.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
