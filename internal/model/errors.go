package model

import "fmt"

// TransportError reports a failed round trip to the backend: refused
// connection, DNS failure, timeout or a request that could not be built.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BodyDrainError reports a response body that could not be buffered in full.
type BodyDrainError struct {
	Err error
}

func (e *BodyDrainError) Error() string {
	return fmt.Sprintf("drain response body: %v", e.Err)
}

func (e *BodyDrainError) Unwrap() error { return e.Err }
