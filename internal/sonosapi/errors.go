package sonosapi

import "fmt"

// UnreachableError indicates the control API could not be reached.
type UnreachableError struct {
	Room string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("sonos api unreachable for room %q: %v", e.Room, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a state request timed out.
type TimeoutError struct {
	Room string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sonos api state request for room %q timed out", e.Room)
}

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	Room       string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sonos api returned status %d for room %q", e.StatusCode, e.Room)
}

// MalformedPayloadError indicates the response body was not a valid state payload.
type MalformedPayloadError struct {
	Room string
	Err  error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed state payload for room %q: %v", e.Room, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
