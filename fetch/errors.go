package fetch

import (
	"errors"
	"fmt"
)

// ErrExhausted matches every *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("fetch: retries exhausted")

// TransportError is a failure to get a response at all: DNS, connection,
// timeout or a truncated body.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("fetch: GET %s: %v", e.URL, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a response with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch: GET %s: unexpected status %s", e.URL, e.Status)
}

// ExhaustedError is returned once every attempt failed. Last is the final
// attempt's *TransportError or *HTTPStatusError; both it and ErrExhausted
// are reachable through errors.Is/As.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch: GET %s: %d attempts failed, last: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// DecodeError is a successful response whose body is not the expected
// JSON. It is not retried and nothing is cached.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("fetch: decode %s: %v", e.URL, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

var errNotJSON = errors.New("body is not valid JSON")
