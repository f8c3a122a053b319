package gateway

import "fmt"

// TimeoutError reports a call that exceeded its deadline. The in-flight
// request has already been canceled when this is returned.
type TimeoutError struct {
	Endpoint string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out", e.Endpoint)
}

// HTTPError reports a non-2xx response; Body carries the response body as
// the error detail, per the backend contract.
type HTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// NetworkError reports a transport-level failure before any response arrived.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError reports a 2xx response missing an expected field.
// Callers treat it exactly like a network failure.
type MalformedResponseError struct {
	Endpoint string
	Field    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("response from %s is missing %q", e.Endpoint, e.Field)
}
